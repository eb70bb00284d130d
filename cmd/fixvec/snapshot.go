package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/plus3/fixvec/codec"
	"github.com/plus3/fixvec/indexed"
	"github.com/plus3/fixvec/snapshot"
	"github.com/spf13/cobra"
)

var (
	snapshotOut         string
	snapshotCodec       string
	snapshotCompression string
	snapshotRemove      []int
	snapshotReadJSON    bool
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write and read store snapshots of string values",
	}

	write := &cobra.Command{
		Use:   "write VALUE...",
		Short: "Push VALUEs into a new store and write it as a snapshot",
		RunE:  runSnapshotWrite,
	}
	write.Flags().StringVarP(&snapshotOut, "out", "o", "", "Snapshot file to create.")
	write.Flags().StringVar(&snapshotCodec, "codec", codec.Default.Name(), "Value codec ("+strings.Join(codec.Names(), ", ")+").")
	write.Flags().StringVar(&snapshotCompression, "compression", snapshot.None.String(), "Body compression (none, zstd, lz4).")
	write.Flags().IntSliceVar(&snapshotRemove, "remove", nil, "Indices to remove before writing.")
	_ = write.MarkFlagRequired("out")

	read := &cobra.Command{
		Use:   "read FILE",
		Short: "Print the contents of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotRead,
	}
	read.Flags().BoolVar(&snapshotReadJSON, "json", false, "Print the store as JSON.")

	cmd.AddCommand(write, read)
	return cmd
}

func runSnapshotWrite(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	c, ok := codec.ByName(snapshotCodec)
	if !ok {
		return fmt.Errorf("unknown codec %q", snapshotCodec)
	}
	comp, err := snapshot.ParseCompression(snapshotCompression)
	if err != nil {
		return err
	}

	store := indexed.FromSlice(args)
	for _, index := range snapshotRemove {
		if _, ok := store.Remove(index); !ok {
			logger.Warn("nothing to remove", "index", index)
		}
	}

	f, err := os.Create(snapshotOut)
	if err != nil {
		return err
	}
	defer f.Close()

	h, err := snapshot.Write(f, store,
		snapshot.WithCodec(c),
		snapshot.WithCompression(comp),
		snapshot.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", snapshotOut, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("snapshot written",
		"file", snapshotOut,
		"id", h.ID,
		"next_index", store.NextIndex(),
		"occupied", store.Len(),
	)
	fmt.Fprintln(cmd.OutOrStdout(), h.ID)
	return nil
}

func runSnapshotRead(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	store, h, err := snapshot.Read[string](f, snapshot.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if snapshotReadJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(store)
	}

	stats := store.Stats()
	fmt.Fprintf(out, "id:          %s\n", h.ID)
	fmt.Fprintf(out, "codec:       %s\n", h.Codec)
	fmt.Fprintf(out, "compression: %s\n", h.Compression)
	fmt.Fprintf(out, "next index:  %d\n", stats.NextIndex)
	fmt.Fprintf(out, "occupied:    %d\n", stats.Occupied)
	fmt.Fprintf(out, "empty:       %d\n", stats.Empty)
	fmt.Fprintln(out)
	fmt.Fprint(out, store)
	return nil
}
