package walog

import (
	"fmt"
	"os"

	"github.com/bobboyms/fiberdb/internal/entity"
)

// CompactionNeeded reports whether w has accumulated enough entries to
// warrant a rewrite (spec §4.1 default CompactionThreshold of 1000).
func CompactionNeeded(w *Writer, opts Options) bool {
	return opts.CompactionThreshold > 0 && w.EntryCount() >= opts.CompactionThreshold
}

// Compact rewrites the log at path as a fresh generation containing exactly
// one Insert entry per entity in live, then atomically swaps it in for the
// original. Grounded on the teacher's Vacuum (pkg/storage/engine.go): write
// the new generation to a side file, fsync, then os.Rename over the
// original so a crash mid-compaction never leaves a half-written log in
// place (spec §4.1 "Compaction... must not lose any live entity even if the
// process crashes mid-compaction").
//
// The caller must hold off concurrent Append calls against path's Writer
// (typically by closing it first) for the duration of Compact.
func Compact(path string, opts Options, live map[string]*entity.Entity) (newEntryCount int, err error) {
	sidePath := path + ".compact"

	w, err := NewWriter(sidePath, opts)
	if err != nil {
		return 0, fmt.Errorf("walog: compact: failed to open side file: %w", err)
	}

	for _, e := range live {
		payload, encErr := EncodeInsert(e)
		if encErr != nil {
			w.Close()
			os.Remove(sidePath)
			return 0, fmt.Errorf("walog: compact: failed to encode entity %s: %w", e.CompositeKey(), encErr)
		}
		if appendErr := w.Append(EntryInsert, w.NextTimestamp(), payload); appendErr != nil {
			w.Close()
			os.Remove(sidePath)
			return 0, fmt.Errorf("walog: compact: failed to write entity %s: %w", e.CompositeKey(), appendErr)
		}
	}

	count := w.EntryCount()
	if err := w.Close(); err != nil {
		os.Remove(sidePath)
		return 0, fmt.Errorf("walog: compact: failed to finalize side file: %w", err)
	}

	if err := os.Rename(sidePath, path); err != nil {
		os.Remove(sidePath)
		return 0, fmt.Errorf("walog: compact: failed to swap compacted log into place: %w", err)
	}

	return count, nil
}
