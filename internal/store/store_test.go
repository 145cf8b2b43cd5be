package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	log, _ := test.NewNullLogger()
	return New(filepath.Join(t.TempDir(), "domains.txt"), log)
}

func TestAddAppendsInOrderWithoutBlanks(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	require.NoError(t, os.WriteFile(s.Path(), []byte("old.com\n"), 0644))

	n, err := s.Add([]string{" a.com ", "", "b.com", "   ", "a.com"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	b, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "old.com\na.com\nb.com\na.com\n", string(b))
}

func TestAddNothingDoesNotCreateFile(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	n, err := s.Add([]string{"", "  \t"})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = os.Stat(s.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestListAfterSequentialAdds(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	_, err := s.Add([]string{"x.com"})
	require.NoError(t, err)
	_, err = s.Add([]string{"y.com", "z.com"})
	require.NoError(t, err)

	got, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"x.com", "y.com", "z.com"}, got)
}

func TestListEmptySignals(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	_, err := s.List()
	assert.ErrorIs(t, err, ErrNotExist)

	require.NoError(t, os.WriteFile(s.Path(), []byte("\n  \n"), 0644))
	got, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClear(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	_, err := s.Add([]string{"a.com"})
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	_, err = os.Stat(s.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.ErrorIs(t, s.Clear(), ErrNotExist)
}

func TestIOErrors(t *testing.T) {
	t.Parallel()

	// A regular file used as the parent directory makes every operation fail
	// with something other than "not exist", even when running as root.
	parent := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(parent, nil, 0644))
	log, hook := test.NewNullLogger()
	s := New(filepath.Join(parent, "domains.txt"), log)

	var ioErr *IOError

	_, err := s.Add([]string{"a.com"})
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open", ioErr.Op)

	_, err = s.List()
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "read", ioErr.Op)

	err = s.Clear()
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "remove", ioErr.Op)
	assert.NotErrorIs(t, err, ErrNotExist)

	assert.Len(t, hook.AllEntries(), 3)
}

func TestConcurrentAddsKeepWholeLines(t *testing.T) {
	t.Parallel()
	s := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add([]string{"one.com", "two.com"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.List()
	require.NoError(t, err)
	require.Len(t, got, 16)
	for _, d := range got {
		assert.Contains(t, []string{"one.com", "two.com"}, d)
	}
}

func TestNewDefaultsPath(t *testing.T) {
	assert.Equal(t, DefaultPath, New("", nil).Path())
}
