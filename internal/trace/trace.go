// Package trace records every evaluation of an optimization run as JSON
// lines.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/thalesfsp/bayesopt"
)

// Entry is one evaluation of the objective. Each entry is serialized as a
// JSON line.
type Entry struct {
	Iteration int       `json:"iteration"`
	Phase     string    `json:"phase"`
	X         []float64 `json:"x"`
	Value     float64   `json:"value"`
	BestX     []float64 `json:"best_x,omitempty"`
	BestValue float64   `json:"best_value"`
	Timestamp time.Time `json:"timestamp"`
}

// EntryFrom converts a progress update into an entry stamped with at.
func EntryFrom(update bayesopt.ProgressUpdate, at time.Time) Entry {
	return Entry{
		Iteration: update.CurrentIteration,
		Phase:     string(update.Phase),
		X:         update.CurrentParams,
		Value:     update.CurrentValue,
		BestX:     update.CurrentBestParams,
		BestValue: update.CurrentBestValue,
		Timestamp: at,
	}
}

// Writer writes entries to a JSONL file through a buffer. It is safe for
// concurrent use.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
	closed bool
}

// NewWriter creates the trace file at path, and its directory if needed. An
// existing file is truncated.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create trace directory: %w", err)
		}
	}

	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	return &Writer{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// Write appends an entry. It reaches the file on Flush or Close.
func (w *Writer) Write(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}

	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}

	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// Flush writes buffered entries to disk.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush trace writer: %w", err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync trace file: %w", err)
	}

	return nil
}

// Close flushes buffered entries and closes the file. Closing twice is a
// no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	if err := w.writer.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to flush on close: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}

	return nil
}

// Path returns the filesystem path of the trace file.
func (w *Writer) Path() string { return w.path }

// ReadAll reads every entry of a trace file.
func ReadAll(path string) ([]Entry, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Decode reads entries from r until EOF.
func Decode(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	// Points of many dimensions make long lines.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var entries []Entry
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace entry %d: %w", len(entries)+1, err)
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan trace line: %w", err)
	}

	return entries, nil
}
