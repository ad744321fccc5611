// v0
// internal/journal/journal.go
package journal

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patonw/elevator-sim/internal/event"
)

var ErrClosed = errors.New("journal closed")

// Record is one line of the journal. Hash covers every other field, so each
// record commits to the whole history before it.
type Record struct {
	ID       uuid.UUID      `json:"id"`
	Seq      int64          `json:"seq"`
	At       time.Time      `json:"at"`
	Event    event.Envelope `json:"event"`
	PrevHash string         `json:"prevHash"`
	Hash     string         `json:"hash"`
}

// ComputeHash hashes the record with its Hash field left out.
func (r *Record) ComputeHash() (string, error) {
	tmp := struct {
		ID       uuid.UUID      `json:"id"`
		Seq      int64          `json:"seq"`
		At       time.Time      `json:"at"`
		Event    event.Envelope `json:"event"`
		PrevHash string         `json:"prevHash"`
	}{r.ID, r.Seq, r.At.UTC(), r.Event, r.PrevHash}
	b, err := json.Marshal(tmp)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:]), nil
}

// Journal is an append-only JSONL file of hash-chained records.
type Journal struct {
	mu       sync.Mutex
	path     string
	log      *slog.Logger
	file     *os.File
	writer   *bufio.Writer
	lastSeq  int64
	lastHash string
	closed   bool
	clock    event.Clock
}

// Open opens or creates the journal at path and validates the existing chain
// so appends continue from its tail.
func Open(path string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	j := &Journal{path: path, log: log, file: f}
	if err := j.load(); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) load() error {
	report, err := verify(j.file)
	if err != nil {
		return err
	}
	if _, err := j.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	j.writer = bufio.NewWriter(j.file)
	j.lastSeq = report.LastSeq
	j.lastHash = report.LastHash
	j.log.Info("journal_loaded", slog.String("path", j.path), slog.Int("records", report.Records), slog.Int64("last_seq", report.LastSeq))
	return nil
}

// Path is the file backing the journal.
func (j *Journal) Path() string { return j.path }

// Observe advances the journal's simulation clock without recording ev.
func (j *Journal) Observe(ev event.Event) { j.clock.Observe(ev) }

// Append chains ev onto the journal and flushes it to the file. The envelope
// is stamped with the latest tick the journal has observed.
func (j *Journal) Append(topic event.Topic, ev event.Event) (*Record, error) {
	j.clock.Observe(ev)
	env, err := event.Wrap(topic, ev, j.clock.Now())
	if err != nil {
		return nil, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}
	rec := &Record{
		ID:       uuid.New(),
		Seq:      j.lastSeq + 1,
		At:       time.Now().UTC(),
		Event:    env,
		PrevHash: j.lastHash,
	}
	if rec.Hash, err = rec.ComputeHash(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if _, err := j.writer.Write(payload); err != nil {
		return nil, err
	}
	if err := j.writer.WriteByte('\n'); err != nil {
		return nil, err
	}
	if err := j.writer.Flush(); err != nil {
		return nil, err
	}
	j.lastSeq = rec.Seq
	j.lastHash = rec.Hash
	return rec, nil
}

// Verify rereads the file and checks every hash and link.
func (j *Journal) Verify() (*VerifyReport, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, ErrClosed
	}
	if err := j.writer.Flush(); err != nil {
		return nil, err
	}
	f, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return verify(f)
}

// Close syncs and closes the file. Later appends fail with ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.writer.Flush(); err != nil {
		j.file.Close()
		return err
	}
	if err := j.file.Sync(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

type VerifyReport struct {
	Records  int    `json:"records"`
	LastSeq  int64  `json:"lastSeq"`
	LastHash string `json:"lastHash"`
}

// VerifyFile checks the chain of the journal at path without opening it for
// writing.
func VerifyFile(path string) (*VerifyReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return verify(f)
}

func verify(r io.Reader) (*VerifyReport, error) {
	report := &VerifyReport{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return report, fmt.Errorf("line %d: %w", line, err)
		}
		if err := report.check(&rec); err != nil {
			return report, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (v *VerifyReport) check(rec *Record) error {
	if rec.Seq != v.LastSeq+1 {
		return fmt.Errorf("seq mismatch: got %d want %d", rec.Seq, v.LastSeq+1)
	}
	if rec.PrevHash != v.LastHash {
		return fmt.Errorf("prevHash mismatch seq=%d", rec.Seq)
	}
	h, err := rec.ComputeHash()
	if err != nil {
		return err
	}
	if h != rec.Hash {
		return fmt.Errorf("hash mismatch seq=%d", rec.Seq)
	}
	v.Records++
	v.LastSeq = rec.Seq
	v.LastHash = rec.Hash
	return nil
}
