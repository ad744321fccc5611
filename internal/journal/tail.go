// v0
// internal/journal/tail.go
package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Tailer follows a journal file as it grows, checking the chain as it goes.
type Tailer struct {
	path   string
	poll   time.Duration
	log    *slog.Logger
	report VerifyReport
}

func NewTailer(path string, poll time.Duration, log *slog.Logger) *Tailer {
	if log == nil {
		log = slog.Default()
	}
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	return &Tailer{path: path, poll: poll, log: log}
}

// Report summarises the records seen so far.
func (t *Tailer) Report() VerifyReport { return t.report }

// Follow calls fn for every record, waiting for new ones until ctx ends.
// A missing file is waited for. A broken chain or an error from fn stops it.
func (t *Tailer) Follow(ctx context.Context, fn func(*Record) error) error {
	var f *os.File
	for f == nil {
		var err error
		f, err = os.Open(t.path)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		t.log.Info("journal_waiting", slog.String("path", t.path))
		if !sleep(ctx, t.poll) {
			return nil
		}
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var partial []byte
	for {
		chunk, err := r.ReadBytes('\n')
		partial = append(partial, chunk...)
		if err == nil {
			if err := t.handle(bytes.TrimSpace(partial), fn); err != nil {
				return err
			}
			partial = partial[:0]
			continue
		}
		if !errors.Is(err, io.EOF) {
			return err
		}
		if !sleep(ctx, t.poll) {
			return nil
		}
	}
}

func (t *Tailer) handle(raw []byte, fn func(*Record) error) error {
	if len(raw) == 0 {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("record %d: %w", t.report.LastSeq+1, err)
	}
	if err := t.report.check(&rec); err != nil {
		return err
	}
	return fn(&rec)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
