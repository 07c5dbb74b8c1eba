// Package csvsink writes a snapshot as delegator,amount lines
package csvsink

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/screwyprof/stakesnap/snapshot"
)

// DefaultPath is where the snapshot goes when no output path is given
const DefaultPath = "stakers.csv"

// Sentinel errors for sink operations
var (
	ErrOpenFailed  = errors.New("cannot open output")
	ErrWriteFailed = errors.New("cannot write output")
)

// Sink stages records in a temporary file next to the destination and
// renames it into place once every record is written, so a failed run
// never leaves a partial file behind.
type Sink struct {
	path string
	tmp  *os.File
}

// Open checks that path can be written and prepares the staging file
func Open(path string) (*Sink, error) {
	if path == "" {
		path = DefaultPath
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrOpenFailed, path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	return &Sink{path: path, tmp: tmp}, nil
}

// Path returns the destination path
func (s *Sink) Path() string {
	return s.path
}

// Write implements snapshot.Sink. It may be called once.
func (s *Sink) Write(ctx context.Context, stakes []snapshot.Stake) error {
	if s.tmp == nil {
		return fmt.Errorf("%w: sink already closed", ErrWriteFailed)
	}

	buf := bufio.NewWriter(s.tmp)
	w := csv.NewWriter(buf)
	for i, st := range stakes {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrWriteFailed, err)
			}
		}
		if err := w.Write([]string{st.Delegator, st.Amount.Dec()}); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return s.commit()
}

func (s *Sink) commit() error {
	tmp := s.tmp
	s.tmp = nil

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Close discards the staging file if Write never completed
func (s *Sink) Close() error {
	if s.tmp == nil {
		return nil
	}
	tmp := s.tmp
	s.tmp = nil
	_ = tmp.Close()
	return os.Remove(tmp.Name())
}
