package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-stp/rdapwatch/internal/rdap"
	"github.com/x-stp/rdapwatch/internal/timeconv"
)

type fakeLookup struct {
	mu      sync.Mutex
	answers map[string]lookupAnswer
	calls   []string
	delay   time.Duration
}

type lookupAnswer struct {
	raw string
	err error
}

func (f *fakeLookup) Expiration(_ context.Context, domain string) (string, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, domain)
	a, ok := f.answers[domain]
	if !ok {
		return "", rdap.ErrNoExpiration
	}
	return a.raw, a.err
}

func newTestChecker(t *testing.T, lookup ExpiryLookup, interval time.Duration) (*Checker, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	conv, err := timeconv.New(timeconv.DefaultZone, log)
	require.NoError(t, err)
	return NewChecker(lookup, conv, interval, log), hook
}

func TestCheckReportsEachDomainInOrder(t *testing.T) {
	lookup := &fakeLookup{answers: map[string]lookupAnswer{
		"a.com": {raw: "2030-07-01T00:00:00Z"},
		"b.com": {err: &rdap.StatusError{Domain: "b.com", StatusCode: 404}},
	}}
	checker, _ := newTestChecker(t, lookup, 0)

	report, err := checker.Check(context.Background(), []string{"a.com", "b.com"})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	assert.Equal(t, []string{"a.com", "b.com"}, lookup.calls)
	assert.Equal(t, []string{
		"🌐 a.com → ⏰ 2030-07-01 01:00:00",
		"❌ b.com: RDAP API error (status: 404).",
	}, report.Lines())
	assert.Equal(t, "🌐 a.com → ⏰ 2030-07-01 01:00:00\n❌ b.com: RDAP API error (status: 404).", report.String())
}

func TestCheckEmptyListMakesNoLookups(t *testing.T) {
	lookup := &fakeLookup{}
	checker, _ := newTestChecker(t, lookup, time.Hour)

	for name, domains := range map[string][]string{
		"nil":   nil,
		"empty": {},
	} {
		t.Run(name, func(t *testing.T) {
			report, err := checker.Check(context.Background(), domains)
			assert.ErrorIs(t, err, ErrNothingToCheck)
			assert.Nil(t, report)
		})
	}
	assert.Empty(t, lookup.calls)
}

func TestCheckClassifiesOutcomes(t *testing.T) {
	refused := &rdap.NetworkError{Domain: "net.com", Err: errors.New("connection refused")}
	lookup := &fakeLookup{answers: map[string]lookupAnswer{
		"ok.com":     {raw: "2030-07-01T00:00:00Z"},
		"bad.com":    {raw: "not-a-date"},
		"none.com":   {err: rdap.ErrNoExpiration},
		"status.com": {err: &rdap.StatusError{Domain: "status.com", StatusCode: 503}},
		"net.com":    {err: refused},
		"json.com":   {err: errors.New("decoding RDAP response: unexpected EOF")},
	}}
	checker, hook := newTestChecker(t, lookup, 0)

	domains := []string{"ok.com", "bad.com", "none.com", "status.com", "net.com", "json.com"}
	report, err := checker.Check(context.Background(), domains)
	require.NoError(t, err)
	require.Len(t, report.Results, len(domains))

	tests := []struct {
		outcome Outcome
		line    string
	}{
		{OutcomeSuccess, "🌐 ok.com → ⏰ 2030-07-01 01:00:00"},
		{OutcomeSuccess, "🌐 bad.com → ⏰ " + timeconv.Fallback},
		{OutcomeNoExpiration, "⚠️ none.com: no expiration date found."},
		{OutcomeStatusError, "❌ status.com: RDAP API error (status: 503)."},
		{OutcomeNetworkError, "⚠️ net.com: network error."},
		{OutcomeUnexpectedError, "⚠️ json.com: decoding RDAP response: unexpected EOF"},
	}
	for i, tt := range tests {
		res := report.Results[i]
		assert.Equal(t, domains[i], res.Domain)
		assert.Equal(t, tt.outcome, res.Outcome, "outcome for %s", res.Domain)
		assert.Equal(t, tt.line, res.Line())
	}

	assert.False(t, report.Results[1].Expiration.OK)
	assert.Equal(t, "not-a-date", report.Results[1].RawExpiration)
	assert.Equal(t, 503, report.Results[3].StatusCode)
	assert.ErrorIs(t, report.Results[4].Err, refused.Err)

	var warned, errored int
	for _, e := range hook.AllEntries() {
		switch e.Level {
		case logrus.WarnLevel:
			warned++
		case logrus.ErrorLevel:
			errored++
		}
	}
	assert.Equal(t, 1, warned, "status error logs a warning")
	// bad timestamp, network error, generic error
	assert.Equal(t, 3, errored)
}

func TestCheckPausesBetweenLookups(t *testing.T) {
	lookup := &fakeLookup{answers: map[string]lookupAnswer{
		"a.com": {raw: "2030-07-01T00:00:00Z"},
		"b.com": {raw: "2030-07-01T00:00:00Z"},
		"c.com": {raw: "2030-07-01T00:00:00Z"},
	}}
	checker, _ := newTestChecker(t, lookup, 20*time.Millisecond)

	start := time.Now()
	report, err := checker.Check(context.Background(), []string{"a.com", "b.com", "c.com"})
	require.NoError(t, err)
	assert.Len(t, report.Results, 3)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestCheckPausesAfterSlowLookups(t *testing.T) {
	lookup := &fakeLookup{answers: map[string]lookupAnswer{
		"a.com": {raw: "2030-07-01T00:00:00Z"},
		"b.com": {raw: "2030-07-01T00:00:00Z"},
		"c.com": {raw: "2030-07-01T00:00:00Z"},
	}}
	lookup.delay = 300 * time.Millisecond
	checker, _ := newTestChecker(t, lookup, 200*time.Millisecond)

	start := time.Now()
	report, err := checker.Check(context.Background(), []string{"a.com", "b.com", "c.com"})
	require.NoError(t, err)
	assert.Len(t, report.Results, 3)
	// three lookups plus a full pause after each
	assert.GreaterOrEqual(t, time.Since(start), 1500*time.Millisecond)
}

func TestCheckCancelledReturnsPartialReport(t *testing.T) {
	lookup := &fakeLookup{answers: map[string]lookupAnswer{
		"a.com": {raw: "2030-07-01T00:00:00Z"},
		"b.com": {raw: "2030-07-01T00:00:00Z"},
	}}
	checker, _ := newTestChecker(t, lookup, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	report, err := checker.Check(ctx, []string{"a.com", "b.com"})
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, []string{"a.com"}, lookup.calls)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "unexpected_error", OutcomeUnexpectedError.String())
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}
