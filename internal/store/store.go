/*
Package store keeps the watched domain list in a flat text file, one entry per
line, in the order entries were added.

The store appends, lists, and removes the whole file; there is no per-entry
update or delete, no deduplication, and no validation of entries beyond
dropping blank lines. A missing file is an empty list.
*/
package store

/*
rdapwatch — domain expiration checks over RDAP, driven from chat
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/x-stp/rdapwatch/internal/metrics"
	"github.com/x-stp/rdapwatch/internal/util"
)

// DefaultPath is the store location relative to the working directory.
const DefaultPath = "domains.txt"

// ErrNotExist is returned by List and Clear when the store file is absent.
var ErrNotExist = errors.New("domain store does not exist")

// IOError reports a failed file operation on the store.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("domain store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Store is a newline-delimited domain list backed by a single file.
// It is safe for concurrent use within one process; appends and removal also
// take an advisory file lock where the platform supports one.
type Store struct {
	path string
	log  logrus.FieldLogger
	mu   sync.Mutex
}

// New returns a Store for path. The file is not touched until the first Add.
func New(path string, log logrus.FieldLogger) *Store {
	if path == "" {
		path = DefaultPath
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		path: path,
		log:  log.WithField("store", path),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Add appends the non-blank, trimmed entries in order and returns how many
// were written. The file is created if needed. Nothing is written, and the
// file is not created, when no entry survives trimming.
func (s *Store) Add(entries []string) (int, error) {
	clean := util.CleanLines(entries)
	if len(clean) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	for _, d := range clean {
		sb.WriteString(d)
		sb.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, s.fail("open", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return 0, s.fail("lock", err)
	}

	_, werr := f.WriteString(sb.String())
	unlockFile(f)
	cerr := f.Close()
	if werr != nil {
		return 0, s.fail("write", werr)
	}
	if cerr != nil {
		return 0, s.fail("close", cerr)
	}

	metrics.GetMetrics().RecordStoreOp("add", "ok")
	s.log.WithField("count", len(clean)).Debug("Appended domains")
	return len(clean), nil
}

// List returns every non-blank, trimmed line in file order. It returns
// ErrNotExist when the file is absent and an empty slice when it holds no
// entries.
func (s *Store) List() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.GetMetrics().RecordStoreOp("list", "missing")
			return nil, ErrNotExist
		}
		return nil, s.fail("read", err)
	}

	domains := util.SplitLines(string(data))
	metrics.GetMetrics().RecordStoreOp("list", "ok")
	return domains, nil
}

// Clear deletes the store file. It returns ErrNotExist when there is nothing
// to delete.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := removeLocked(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			metrics.GetMetrics().RecordStoreOp("clear", "missing")
			return ErrNotExist
		}
		return s.fail("remove", err)
	}

	metrics.GetMetrics().RecordStoreOp("clear", "ok")
	s.log.Info("Cleared domain store")
	return nil
}

func (s *Store) fail(op string, err error) error {
	metrics.GetMetrics().RecordStoreOp(op, "error")
	s.log.WithError(err).WithField("op", op).Error("Domain store operation failed")
	return &IOError{Op: op, Path: s.path, Err: err}
}
