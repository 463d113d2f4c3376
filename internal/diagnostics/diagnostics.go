// Package diagnostics keeps a bounded log of failed webhook submissions.
// Entries are informational only and are never resubmitted.
package diagnostics

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"jurify/internal/webhook"
)

const (
	DefaultCapacity = 50
	Key             = "failed_webhooks"
)

type Entry struct {
	Timestamp string          `json:"timestamp"`
	Payload   webhook.Payload `json:"payload"`
	Error     string          `json:"error"`
}

// NewEntry stamps a failure record.
func NewEntry(now time.Time, p webhook.Payload, msg string) Entry {
	return Entry{Timestamp: now.UTC().Format(webhook.TimestampLayout), Payload: p, Error: msg}
}

// Sink is an append-with-eviction log; List returns the oldest entry first.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
}

func capacity(n int) int {
	if n <= 0 {
		return DefaultCapacity
	}
	return n
}

// FileSink stores entries as a JSON array on disk.
type FileSink struct {
	Path     string
	Capacity int

	mu sync.Mutex
}

// NewFileSink places the log under dir as failed_webhooks.json.
func NewFileSink(dir string, capacity int) *FileSink {
	return &FileSink{Path: filepath.Join(dir, Key+".json"), Capacity: capacity}
}

func (s *FileSink) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read()
	if err != nil {
		return err
	}
	entries = append(entries, e)
	if limit := capacity(s.Capacity); len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal failed webhooks")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return errors.Wrap(err, "create diagnostics dir")
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	return errors.Wrap(os.Rename(tmp, s.Path), "replace failed webhooks log")
}

func (s *FileSink) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileSink) read() ([]Entry, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.Path)
	}
	var entries []Entry
	if len(data) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "parse %s", s.Path)
	}
	return entries, nil
}
