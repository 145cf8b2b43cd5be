/*
Package timeconv converts the UTC timestamps found in RDAP events into
wall-clock text for a fixed display zone.

Conversion never fails from the caller's point of view: Convert returns a
Result that either carries the formatted local time or the Fallback text.
The output does not depend on the host's TZ setting. Zone rules come from the
host's zoneinfo database when it has one; time/tzdata is embedded as the
fallback for hosts without it.
*/
package timeconv

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
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultZone is the display zone. It follows Morocco's own offset rules,
	// including the Ramadan switch back to +00.
	DefaultZone = "Africa/Casablanca"
	// Layout is the output format: 24-hour, zero padded, no zone suffix.
	Layout = "2006-01-02 15:04:05"
	// Fallback is returned in place of a time that could not be parsed.
	Fallback = "? unknown time"
)

// Layouts carrying an explicit UTC offset. Fractional seconds are accepted
// by time.Parse even though the layouts do not spell them out.
var offsetLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
}

// Layouts without an offset; these are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Result is the outcome of a conversion. OK is false when Text holds Fallback.
type Result struct {
	Text string
	OK   bool
}

func (r Result) String() string {
	return r.Text
}

// Converter renders timestamps in one location.
type Converter struct {
	loc *time.Location
	log logrus.FieldLogger
}

// New returns a Converter for the named IANA zone.
func New(zone string, log logrus.FieldLogger) (*Converter, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", zone, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Converter{loc: loc, log: log}, nil
}

// Location returns the display location.
func (c *Converter) Location() *time.Location {
	return c.loc
}

// Convert parses an ISO-8601 UTC timestamp and formats it in the display zone.
func (c *Converter) Convert(raw string) Result {
	t, err := Parse(raw)
	if err != nil {
		c.log.WithError(err).WithField("input", raw).Error("Error converting time")
		return Result{Text: Fallback}
	}
	return Result{Text: t.In(c.loc).Format(Layout), OK: true}
}

// Parse reads an ISO-8601 date-time. A trailing literal "Z" is treated as
// "+00:00"; a value without any offset is assumed to be UTC.
func Parse(raw string) (time.Time, error) {
	s := raw
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized ISO-8601 timestamp %q", raw)
}
