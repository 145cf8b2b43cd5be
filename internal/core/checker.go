package core

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
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x-stp/rdapwatch/internal/metrics"
	"github.com/x-stp/rdapwatch/internal/rdap"
	"github.com/x-stp/rdapwatch/internal/timeconv"
)

// ExpiryLookup returns the raw expiration timestamp registered for a domain.
// *rdap.Client implements it.
type ExpiryLookup interface {
	Expiration(ctx context.Context, domain string) (string, error)
}

// Outcome classifies the result of looking up one domain.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNoExpiration
	OutcomeStatusError
	OutcomeNetworkError
	OutcomeUnexpectedError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoExpiration:
		return "no_expiration"
	case OutcomeStatusError:
		return "status_error"
	case OutcomeNetworkError:
		return "network_error"
	case OutcomeUnexpectedError:
		return "unexpected_error"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the lookup result for one domain.
type Result struct {
	Domain  string
	Outcome Outcome
	// RawExpiration is the eventDate as returned by the server.
	RawExpiration string
	// Expiration is RawExpiration rendered in the display zone.
	Expiration timeconv.Result
	// StatusCode is set for OutcomeStatusError.
	StatusCode int
	Err        error
}

// Line renders the result as one reply line.
func (r Result) Line() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return fmt.Sprintf("🌐 %s → ⏰ %s", r.Domain, r.Expiration.Text)
	case OutcomeNoExpiration:
		return fmt.Sprintf("⚠️ %s: no expiration date found.", r.Domain)
	case OutcomeStatusError:
		return fmt.Sprintf("❌ %s: RDAP API error (status: %d).", r.Domain, r.StatusCode)
	case OutcomeNetworkError:
		return fmt.Sprintf("⚠️ %s: network error.", r.Domain)
	default:
		msg := "unknown error"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		return fmt.Sprintf("⚠️ %s: %s", r.Domain, msg)
	}
}

// Report is the ordered outcome of a check pass, one Result per input domain.
type Report struct {
	Results []Result
}

// Lines returns one rendered line per result, in input order.
func (r *Report) Lines() []string {
	lines := make([]string, len(r.Results))
	for i, res := range r.Results {
		lines[i] = res.Line()
	}
	return lines
}

func (r *Report) String() string {
	return strings.Join(r.Lines(), "\n")
}

// Checker runs expiry lookups over a domain list, one at a time.
type Checker struct {
	lookup   ExpiryLookup
	conv     *timeconv.Converter
	interval time.Duration
	log      logrus.FieldLogger
}

// NewChecker returns a Checker that pauses interval between lookups.
// A non-positive interval disables the pause.
func NewChecker(lookup ExpiryLookup, conv *timeconv.Converter, interval time.Duration, log logrus.FieldLogger) *Checker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Checker{
		lookup:   lookup,
		conv:     conv,
		interval: interval,
		log:      log,
	}
}

// Check looks up every domain in order, never concurrently, and pauses for
// the checker's full interval after each lookup, the last one included. A
// failure for one domain is recorded in its Result and does not stop the pass.
//
// Parameters:
//   ctx: Cancels the pass. Lookups and pauses both observe it.
//   domains: The domains to look up, in the order results should be reported.
//
// Returns:
//   A Report with one Result per domain, in input order, and a nil error.
//   ErrNothingToCheck, with a nil Report, when domains is empty; no lookup
//   is made in that case.
//   If ctx ends mid-pass, the Results gathered so far together with an error
//   wrapping the context's error.
func (c *Checker) Check(ctx context.Context, domains []string) (*Report, error) {
	if len(domains) == 0 {
		return nil, ErrNothingToCheck
	}

	metrics.GetMetrics().ObserveCheck(len(domains))
	gate := NewIntervalGate(c.interval)
	report := &Report{Results: make([]Result, 0, len(domains))}

	for _, domain := range domains {
		report.Results = append(report.Results, c.checkOne(ctx, domain))

		if err := gate.Wait(ctx); err != nil {
			return report, fmt.Errorf("check interrupted after %s: %w", domain, err)
		}
	}
	return report, nil
}

func (c *Checker) checkOne(ctx context.Context, domain string) Result {
	log := c.log.WithField("domain", domain)
	start := time.Now()
	raw, err := c.lookup.Expiration(ctx, domain)
	res := classify(domain, raw, err)
	if res.Outcome == OutcomeSuccess {
		res.Expiration = c.conv.Convert(raw)
	}
	metrics.GetMetrics().ObserveLookup(res.Outcome.String(), time.Since(start))

	switch res.Outcome {
	case OutcomeSuccess:
		log.WithField("expiration", res.Expiration.Text).Debug("Domain checked")
	case OutcomeNoExpiration:
		log.Info("No expiration event for domain")
	case OutcomeStatusError:
		log.WithField("status", res.StatusCode).WithError(err).Warn("RDAP API error")
	case OutcomeNetworkError:
		log.WithError(err).Error("Network error")
	default:
		log.WithError(err).Error("Generic error")
	}
	return res
}

func classify(domain, raw string, err error) Result {
	res := Result{Domain: domain, RawExpiration: raw, Err: err}

	var statusErr *rdap.StatusError
	var netErr *rdap.NetworkError
	switch {
	case err == nil:
		res.Outcome = OutcomeSuccess
	case errors.Is(err, rdap.ErrNoExpiration):
		res.Outcome = OutcomeNoExpiration
	case errors.As(err, &statusErr):
		res.Outcome = OutcomeStatusError
		res.StatusCode = statusErr.StatusCode
	case errors.As(err, &netErr):
		res.Outcome = OutcomeNetworkError
	default:
		res.Outcome = OutcomeUnexpectedError
	}
	return res
}
