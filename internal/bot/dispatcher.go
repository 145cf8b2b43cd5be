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

// Package bot maps chat commands onto the domain store and the expiry
// checker, and carries replies back over a transport.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/x-stp/rdapwatch/internal/core"
	"github.com/x-stp/rdapwatch/internal/metrics"
	"github.com/x-stp/rdapwatch/internal/store"
	"github.com/x-stp/rdapwatch/internal/util"
)

// Command names as typed after the slash.
const (
	CmdAdd   = "adddomains"
	CmdCheck = "checkdomains"
	CmdList  = "listdomains"
	CmdClear = "cleardomains"
	CmdStart = "start"
	CmdHelp  = "help"
)

// Reply texts.
const (
	MsgAddUsage     = "⚠️ Send the domain list after /adddomains, one per line."
	MsgAddFailed    = "❌ Failed to save the domains."
	MsgNoList       = "🚫 There are no domains in the list."
	MsgEmptyList    = "📭 The list is empty."
	MsgReadFailed   = "❌ Failed to read the domain list."
	MsgListFailed   = "❌ Failed to show the list."
	MsgChecking     = "🔍 Checking domains... please wait."
	MsgNoResults    = "😕 No results."
	MsgCleared      = "🧹 All domains cleared."
	MsgNothingClear = "⚠️ There is no list to clear."
	MsgClearFailed  = "❌ Failed to clear the list."
	MsgBusy         = "⏳ Still working on your previous commands, try again shortly."
	MsgListHeader   = "📋 Domains:\n"
)

const helpText = `👋 I track domain expiration dates over RDAP.

/adddomains <domains> - add domains, one per line
/checkdomains - look up the expiration date of every domain
/listdomains - show the saved domains
/cleardomains - delete the saved list`

// DomainStore is the persistence the dispatcher needs. *store.Store
// implements it.
type DomainStore interface {
	Add(entries []string) (int, error)
	List() ([]string, error)
	Clear() error
}

// DomainChecker runs a check pass. *core.Checker implements it.
type DomainChecker interface {
	Check(ctx context.Context, domains []string) (*core.Report, error)
}

// Replier sends one message back to whoever issued the command.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// Dispatcher handles the bot's commands. It holds no per-chat state.
type Dispatcher struct {
	store   DomainStore
	checker DomainChecker
	log     logrus.FieldLogger
}

// NewDispatcher returns a Dispatcher over st and checker.
func NewDispatcher(st DomainStore, checker DomainChecker, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{store: st, checker: checker, log: log}
}

// Knows reports whether name is a command the dispatcher handles.
func (d *Dispatcher) Knows(name string) bool {
	switch name {
	case CmdAdd, CmdCheck, CmdList, CmdClear, CmdStart, CmdHelp:
		return true
	}
	return false
}

// Handle runs command name with its argument text and sends the replies
// through r. Store and lookup failures become reply messages; the returned
// error is only set when a reply could not be delivered or the command is
// unknown.
func (d *Dispatcher) Handle(ctx context.Context, name, args string, r Replier) error {
	if !d.Knows(name) {
		return fmt.Errorf("unknown command %q", name)
	}
	defer metrics.GetMetrics().RecordCommand(name)()

	log := d.log.WithFields(logrus.Fields{
		"command":    name,
		"request_id": uuid.NewString(),
	})
	log.Debug("Handling command")

	switch name {
	case CmdAdd:
		return d.add(ctx, args, r, log)
	case CmdCheck:
		return d.check(ctx, r, log)
	case CmdList:
		return d.list(ctx, r, log)
	case CmdClear:
		return d.clear(ctx, r, log)
	default:
		return r.Reply(ctx, helpText)
	}
}

func (d *Dispatcher) add(ctx context.Context, args string, r Replier, log logrus.FieldLogger) error {
	domains := util.SplitLines(args)
	if len(domains) == 0 {
		return r.Reply(ctx, MsgAddUsage)
	}

	n, err := d.store.Add(domains)
	if err != nil {
		log.WithError(err).Error("Error writing to domains file")
		return r.Reply(ctx, MsgAddFailed)
	}
	log.WithField("added", n).Info("Domains added")
	return r.Reply(ctx, fmt.Sprintf("✅ Added %d domain(s).", n))
}

func (d *Dispatcher) check(ctx context.Context, r Replier, log logrus.FieldLogger) error {
	domains, ok, err := d.load(ctx, r, log, MsgReadFailed)
	if !ok {
		return err
	}

	if err := r.Reply(ctx, MsgChecking); err != nil {
		return err
	}

	report, err := d.checker.Check(ctx, domains)
	switch {
	case errors.Is(err, core.ErrNothingToCheck):
		return r.Reply(ctx, MsgEmptyList)
	case err != nil && report == nil:
		log.WithError(err).Error("Check failed")
		return r.Reply(ctx, MsgNoResults)
	case err != nil:
		// interrupted; still deliver what was gathered
		log.WithError(err).Warn("Check interrupted")
	}

	text := report.String()
	if text == "" {
		text = MsgNoResults
	}
	return r.Reply(ctx, text)
}

func (d *Dispatcher) list(ctx context.Context, r Replier, log logrus.FieldLogger) error {
	domains, ok, err := d.load(ctx, r, log, MsgListFailed)
	if !ok {
		return err
	}
	return r.Reply(ctx, MsgListHeader+strings.Join(domains, "\n"))
}

// load reads the stored list and answers the "no list", "empty list" and
// read failure cases itself, the last with failMsg. ok is false when a reply
// has already been sent.
func (d *Dispatcher) load(ctx context.Context, r Replier, log logrus.FieldLogger, failMsg string) (domains []string, ok bool, err error) {
	domains, err = d.store.List()
	switch {
	case errors.Is(err, store.ErrNotExist):
		return nil, false, r.Reply(ctx, MsgNoList)
	case err != nil:
		log.WithError(err).Error("Error reading domains file")
		return nil, false, r.Reply(ctx, failMsg)
	case len(domains) == 0:
		return nil, false, r.Reply(ctx, MsgEmptyList)
	}
	return domains, true, nil
}

func (d *Dispatcher) clear(ctx context.Context, r Replier, log logrus.FieldLogger) error {
	err := d.store.Clear()
	switch {
	case err == nil:
		log.Info("Domains cleared")
		return r.Reply(ctx, MsgCleared)
	case errors.Is(err, store.ErrNotExist):
		return r.Reply(ctx, MsgNothingClear)
	default:
		log.WithError(err).Error("Error removing domains file")
		return r.Reply(ctx, MsgClearFailed)
	}
}
