package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "kolwatch/pkg/logx"
)

// fileStore appends deliveries to <prefix>.deliveries.jsonl.
//
// Every compactEvery writes the file is rewritten to its newest
// maxRecords lines.
type fileStore struct {
	log logx.Logger

	mu      sync.Mutex
	path    string
	f       *os.File
	max     int
	writes  int
	compact int
}

const compactEvery = 500

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	journal := filepath.Join(dir, base) + ".deliveries.jsonl"
	f, err := os.OpenFile(journal, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, path: journal, f: f, max: cfg.MaxRecords, compact: compactEvery}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *fileStore) RecordDelivery(_ context.Context, d Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.f).Encode(d); err != nil {
		return err
	}
	s.writes++
	if s.writes%s.compact == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentDeliveries(_ context.Context, n int) ([]Delivery, error) {
	if n <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil, ErrClosed
	}
	tail, err := s.tailLocked(n)
	if err != nil {
		return nil, err
	}
	out := make([]Delivery, 0, len(tail))
	for i := len(tail) - 1; i >= 0; i-- {
		var d Delivery
		if err := json.Unmarshal(tail[i], &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// tailLocked returns the last n non-empty lines, oldest first.
func (s *fileStore) tailLocked(n int) ([][]byte, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	ring := make([][]byte, 0, n)
	sc := bufio.NewScanner(s.f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		cp := append([]byte(nil), line...)
		if len(ring) == n {
			copy(ring, ring[1:])
			ring[n-1] = cp
		} else {
			ring = append(ring, cp)
		}
	}
	return ring, sc.Err()
}

func (s *fileStore) compactLocked() error {
	keep, err := s.tailLocked(s.max)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range keep {
		_, _ = w.Write(line)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := s.f.Close(); err != nil {
		return err
	}
	renameErr := os.Rename(tmp, s.path)
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		s.f = nil
		return err
	}
	s.f = nf
	return renameErr
}
