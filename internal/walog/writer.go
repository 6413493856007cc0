package walog

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"
)

// Writer manages durable, ordered appends to a single log file, grounded on
// the teacher's pkg/wal/writer.go: a bufio.Writer in front of an
// os.File opened O_APPEND, with a configurable sync policy and an optional
// background-sync goroutine.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	options Options
	clock   *Clock

	batchBytes int64
	entryCount int

	done   chan struct{}
	ticker *time.Ticker
	closed bool
}

// NewWriter opens (creating if necessary) the log file at path for append.
func NewWriter(path string, opts Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("walog: failed to open log file: %w", err)
	}

	w := &Writer{
		file:    f,
		writer:  bufio.NewWriterSize(f, opts.BufferSize),
		options: opts,
		clock:   NewClock(),
		done:    make(chan struct{}),
	}

	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}

	return w, nil
}

// Path returns the underlying file path.
func (w *Writer) Path() string {
	return w.file.Name()
}

// Clock exposes the writer's timestamp source so replay can resynchronize it.
func (w *Writer) Clock() *Clock {
	return w.clock
}

// NextTimestamp issues the next strictly-increasing entry timestamp.
func (w *Writer) NextTimestamp() uint64 {
	return w.clock.Next()
}

// Append frames entryType/payload into an Entry, writes it, and applies the
// configured sync policy. The returned error means the bytes are not
// durable; the caller must treat the in-progress operation as failed (spec
// §4.1 failure model).
func (w *Writer) Append(entryType EntryType, timestamp uint64, payload []byte) error {
	entry := AcquireEntry()
	defer ReleaseEntry(entry)

	entry.Header = Header{
		Magic:      WALMagic,
		Version:    WALVersion,
		EntryType:  entryType,
		Timestamp:  timestamp,
		PayloadLen: uint32(len(payload)),
		CRC32:      CalculateCRC32(payload),
	}
	entry.Payload = append(entry.Payload[:0], payload...)

	return w.writeEntry(entry)
}

func (w *Writer) writeEntry(entry *Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("walog: writer is closed")
	}

	n, err := entry.WriteTo(w.writer)
	if err != nil {
		return err
	}
	w.batchBytes += n
	w.entryCount++

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		return w.syncLocked()
	case SyncBatch:
		if w.batchBytes >= w.options.SyncBatchBytes {
			return w.syncLocked()
		}
	}
	return nil
}

// Sync forces a flush + fsync regardless of policy.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.batchBytes = 0
	return nil
}

// EntryCount returns the number of entries appended since this writer was
// opened (used to decide when to trigger compaction).
func (w *Writer) EntryCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entryCount
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}

	if err := w.syncLocked(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *Writer) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.Sync()
		case <-w.done:
			return
		}
	}
}
