/*
Package rdap fetches domain registration records from an RDAP server and reads
the expiration event out of them.

Only one endpoint template is used. The default points at Verisign's `.com`
service; names under other registries get whatever error that server returns,
surfaced as a StatusError.
*/
package rdap

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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/x-stp/rdapwatch/internal/metrics"
)

const (
	// DomainPlaceholder is replaced with the domain name in an endpoint template.
	DomainPlaceholder = "{domain}"
	// DefaultEndpoint is Verisign's RDAP service for the .com registry.
	DefaultEndpoint = "https://rdap.verisign.com/com/v1/domain/" + DomainPlaceholder
	// DefaultTimeout bounds one lookup.
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent identifies lookups to the RDAP server.
	DefaultUserAgent = "rdapwatch (+https://github.com/x-stp/rdapwatch)"

	// EventExpiration is the eventAction of the registration expiry event.
	EventExpiration = "expiration"

	maxBodyBytes = 4 << 20
)

// ErrNoExpiration is returned when a record carries no expiration event.
var ErrNoExpiration = errors.New("no expiration event in RDAP record")

// StatusError reports a non-2xx answer from the RDAP server.
type StatusError struct {
	Domain     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d fetching RDAP record for %s", e.StatusCode, e.Domain)
}

// NetworkError reports a failure to get any answer: dial errors, resets,
// timeouts, or a body cut short.
type NetworkError struct {
	Domain string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching RDAP record for %s: %v", e.Domain, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Event is one entry of an RDAP record's events array.
type Event struct {
	Action string `json:"eventAction"`
	Date   string `json:"eventDate"`
}

// DomainResponse is the subset of an RDAP domain object that is read.
type DomainResponse struct {
	ObjectClassName string  `json:"objectClassName"`
	LDHName         string  `json:"ldhName"`
	Events          []Event `json:"events"`
}

// Expiration returns the date of the first expiration event. Events are
// scanned in order up to that one; an event without an eventAction is a
// malformed record and yields an error. ErrNoExpiration is returned when no
// expiration event exists or the first one carries no date.
func (r *DomainResponse) Expiration() (string, error) {
	for i, ev := range r.Events {
		switch ev.Action {
		case "":
			return "", fmt.Errorf("malformed RDAP record: event %d has no eventAction", i)
		case EventExpiration:
			if strings.TrimSpace(ev.Date) == "" {
				return "", ErrNoExpiration
			}
			return ev.Date, nil
		}
	}
	return "", ErrNoExpiration
}

// Config holds the lookup settings. Zero values fall back to defaults.
type Config struct {
	// Endpoint is a URL template containing DomainPlaceholder.
	Endpoint  string
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns the Verisign .com settings.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:  DefaultEndpoint,
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Client looks up domains against one RDAP endpoint template.
type Client struct {
	endpoint   string
	timeout    time.Duration
	userAgent  string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewClient returns a Client. httpClient is usually client.GetHTTPClient().
func NewClient(cfg *Config, httpClient *http.Client, log logrus.FieldLogger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Client{
		endpoint:   cfg.Endpoint,
		timeout:    cfg.Timeout,
		userAgent:  cfg.UserAgent,
		httpClient: httpClient,
		log:        log,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

// URL builds the lookup URL for domain.
func (c *Client) URL(domain string) string {
	return strings.ReplaceAll(c.endpoint, DomainPlaceholder, url.PathEscape(domain))
}

// Lookup fetches and decodes the RDAP record for domain.
//
// The request is bounded by the client's timeout on top of ctx. Failures are
// classified so callers can tell them apart with errors.As / errors.Is.
//
// Parameters:
//   ctx: Context for the request; cancellation aborts it.
//   domain: The domain name substituted into the endpoint template.
//
// Returns:
//   The decoded record on a 2xx answer.
//   *StatusError for any non-2xx answer.
//   *NetworkError when no answer arrived or its body was cut short,
//   timeouts included.
//   A plain wrapped error when the request cannot be built or the body is
//   not valid JSON.
func (c *Client) Lookup(ctx context.Context, domain string) (*DomainResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(domain), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating RDAP request for %s: %w", domain, err)
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GetMetrics().ObserveRDAPRequest(0, time.Since(start))
		return nil, &NetworkError{Domain: domain, Err: err}
	}
	defer resp.Body.Close()
	metrics.GetMetrics().ObserveRDAPRequest(resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{Domain: domain, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &NetworkError{Domain: domain, Err: err}
	}

	var record DomainResponse
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("error parsing RDAP response for %s: %w", domain, err)
	}
	return &record, nil
}

// Expiration returns the raw eventDate of domain's expiration event, or
// ErrNoExpiration when the record has none.
func (c *Client) Expiration(ctx context.Context, domain string) (string, error) {
	record, err := c.Lookup(ctx, domain)
	if err != nil {
		return "", err
	}
	date, err := record.Expiration()
	if err != nil {
		return "", err
	}
	c.log.WithFields(logrus.Fields{"domain": domain, "expiration": date}).Debug("RDAP lookup complete")
	return date, nil
}
