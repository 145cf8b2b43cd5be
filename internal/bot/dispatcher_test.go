package bot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-stp/rdapwatch/internal/core"
	"github.com/x-stp/rdapwatch/internal/store"
)

type recordingReplier struct {
	replies []string
	err     error
}

func (r *recordingReplier) Reply(_ context.Context, text string) error {
	r.replies = append(r.replies, text)
	return r.err
}

type fakeStore struct {
	domains  []string
	listErr  error
	addErr   error
	clearErr error
	added    []string
}

func (f *fakeStore) Add(entries []string) (int, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	f.added = append(f.added, entries...)
	return len(entries), nil
}

func (f *fakeStore) List() ([]string, error) { return f.domains, f.listErr }

func (f *fakeStore) Clear() error { return f.clearErr }

type fakeChecker struct {
	calls  int
	report *core.Report
	err    error
}

func (f *fakeChecker) Check(_ context.Context, domains []string) (*core.Report, error) {
	f.calls++
	if f.report != nil || f.err != nil {
		return f.report, f.err
	}
	r := &core.Report{}
	for _, d := range domains {
		r.Results = append(r.Results, core.Result{Domain: d, Outcome: core.OutcomeNoExpiration})
	}
	return r, nil
}

func newTestDispatcher(st DomainStore, ch DomainChecker) *Dispatcher {
	log, _ := test.NewNullLogger()
	return NewDispatcher(st, ch, log)
}

func TestDispatcherAdd(t *testing.T) {
	tests := map[string]struct {
		args    string
		addErr  error
		want    string
		wantAdd []string
	}{
		"two domains": {
			args:    "a.com\n  b.com  \n\n",
			want:    "✅ Added 2 domain(s).",
			wantAdd: []string{"a.com", "b.com"},
		},
		"empty body": {
			args: "  \n ",
			want: MsgAddUsage,
		},
		"write failure": {
			args:   "a.com",
			addErr: &store.IOError{Op: "open", Path: "x", Err: errors.New("denied")},
			want:   MsgAddFailed,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			st := &fakeStore{addErr: tt.addErr}
			r := &recordingReplier{}

			err := newTestDispatcher(st, &fakeChecker{}).Handle(context.Background(), CmdAdd, tt.args, r)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, r.replies)
			assert.Equal(t, tt.wantAdd, st.added)
		})
	}
}

func TestDispatcherList(t *testing.T) {
	tests := map[string]struct {
		store *fakeStore
		want  string
	}{
		"missing": {&fakeStore{listErr: store.ErrNotExist}, MsgNoList},
		"empty":   {&fakeStore{domains: []string{}}, MsgEmptyList},
		"failure": {&fakeStore{listErr: errors.New("boom")}, MsgListFailed},
		"list":    {&fakeStore{domains: []string{"a.com", "b.com"}}, "📋 Domains:\na.com\nb.com"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := &recordingReplier{}
			require.NoError(t, newTestDispatcher(tt.store, &fakeChecker{}).Handle(context.Background(), CmdList, "", r))
			assert.Equal(t, []string{tt.want}, r.replies)
		})
	}
}

func TestDispatcherCheck(t *testing.T) {
	t.Run("missing list makes no lookups", func(t *testing.T) {
		ch := &fakeChecker{}
		r := &recordingReplier{}
		d := newTestDispatcher(&fakeStore{listErr: store.ErrNotExist}, ch)

		require.NoError(t, d.Handle(context.Background(), CmdCheck, "", r))
		assert.Equal(t, []string{MsgNoList}, r.replies)
		assert.Zero(t, ch.calls)
	})

	t.Run("empty list makes no lookups", func(t *testing.T) {
		ch := &fakeChecker{}
		r := &recordingReplier{}
		d := newTestDispatcher(&fakeStore{domains: []string{}}, ch)

		require.NoError(t, d.Handle(context.Background(), CmdCheck, "", r))
		assert.Equal(t, []string{MsgEmptyList}, r.replies)
		assert.Zero(t, ch.calls)
	})

	t.Run("read failure", func(t *testing.T) {
		r := &recordingReplier{}
		d := newTestDispatcher(&fakeStore{listErr: errors.New("boom")}, &fakeChecker{})

		require.NoError(t, d.Handle(context.Background(), CmdCheck, "", r))
		assert.Equal(t, []string{MsgReadFailed}, r.replies)
	})

	t.Run("acknowledges then reports", func(t *testing.T) {
		ch := &fakeChecker{}
		r := &recordingReplier{}
		d := newTestDispatcher(&fakeStore{domains: []string{"a.com", "b.com"}}, ch)

		require.NoError(t, d.Handle(context.Background(), CmdCheck, "", r))
		require.Len(t, r.replies, 2)
		assert.Equal(t, MsgChecking, r.replies[0])
		assert.Equal(t, "⚠️ a.com: no expiration date found.\n⚠️ b.com: no expiration date found.", r.replies[1])
		assert.Equal(t, 1, ch.calls)
	})

	t.Run("interrupted check delivers partial report", func(t *testing.T) {
		ch := &fakeChecker{
			report: &core.Report{Results: []core.Result{{Domain: "a.com", Outcome: core.OutcomeNetworkError}}},
			err:    context.Canceled,
		}
		r := &recordingReplier{}
		d := newTestDispatcher(&fakeStore{domains: []string{"a.com", "b.com"}}, ch)

		require.NoError(t, d.Handle(context.Background(), CmdCheck, "", r))
		assert.Equal(t, []string{MsgChecking, "⚠️ a.com: network error."}, r.replies)
	})

	t.Run("checker failure without report", func(t *testing.T) {
		ch := &fakeChecker{err: errors.New("boom")}
		r := &recordingReplier{}
		d := newTestDispatcher(&fakeStore{domains: []string{"a.com"}}, ch)

		require.NoError(t, d.Handle(context.Background(), CmdCheck, "", r))
		assert.Equal(t, []string{MsgChecking, MsgNoResults}, r.replies)
	})
}

func TestDispatcherClear(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"cleared": {nil, MsgCleared},
		"missing": {store.ErrNotExist, MsgNothingClear},
		"failure": {&store.IOError{Op: "remove", Path: "x", Err: errors.New("busy")}, MsgClearFailed},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := &recordingReplier{}
			require.NoError(t, newTestDispatcher(&fakeStore{clearErr: tt.err}, &fakeChecker{}).Handle(context.Background(), CmdClear, "", r))
			assert.Equal(t, []string{tt.want}, r.replies)
		})
	}
}

func TestDispatcherHelpAndUnknown(t *testing.T) {
	d := newTestDispatcher(&fakeStore{}, &fakeChecker{})

	for _, cmd := range []string{CmdStart, CmdHelp} {
		r := &recordingReplier{}
		require.NoError(t, d.Handle(context.Background(), cmd, "", r))
		require.Len(t, r.replies, 1)
		assert.Contains(t, r.replies[0], "/checkdomains")
	}

	assert.False(t, d.Knows("rm"))
	r := &recordingReplier{}
	assert.Error(t, d.Handle(context.Background(), "rm", "", r))
	assert.Empty(t, r.replies)
}

func TestDispatcherReplyErrorPropagates(t *testing.T) {
	sendErr := errors.New("chat gone")
	r := &recordingReplier{err: sendErr}
	d := newTestDispatcher(&fakeStore{listErr: store.ErrNotExist}, &fakeChecker{})

	assert.ErrorIs(t, d.Handle(context.Background(), CmdList, "", r), sendErr)
}

func TestDispatcherWithFileStore(t *testing.T) {
	log, _ := test.NewNullLogger()
	st := store.New(filepath.Join(t.TempDir(), "domains.txt"), log)
	d := NewDispatcher(st, &fakeChecker{}, log)
	ctx := context.Background()

	var out strings.Builder
	r := NewWriterReplier(&out)

	require.NoError(t, d.Handle(ctx, CmdList, "", r))
	require.NoError(t, d.Handle(ctx, CmdAdd, "x.com\ny.com", r))
	require.NoError(t, d.Handle(ctx, CmdAdd, "z.com", r))
	require.NoError(t, d.Handle(ctx, CmdList, "", r))
	require.NoError(t, d.Handle(ctx, CmdClear, "", r))
	require.NoError(t, d.Handle(ctx, CmdClear, "", r))

	assert.Equal(t, strings.Join([]string{
		MsgNoList,
		"✅ Added 2 domain(s).",
		"✅ Added 1 domain(s).",
		"📋 Domains:\nx.com\ny.com\nz.com",
		MsgCleared,
		MsgNothingClear,
	}, "\n")+"\n", out.String())
}
