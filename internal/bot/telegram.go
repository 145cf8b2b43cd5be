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

package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/x-stp/rdapwatch/internal/core"
	"github.com/x-stp/rdapwatch/internal/util"
)

const (
	// MaxMessageLength is Telegram's limit on a single text message.
	MaxMessageLength = 4096

	// DefaultPollTimeout is the long-polling timeout in seconds.
	DefaultPollTimeout = 60
)

// sender is the part of *tgbotapi.BotAPI used to deliver replies.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// JobScheduler queues command handling. *core.Scheduler implements it.
type JobScheduler interface {
	Submit(key string, job core.Job) error
}

// Telegram receives commands by long polling and hands each one to the
// dispatcher on the scheduler, keyed by chat so one chat's commands run in
// order.
type Telegram struct {
	api        *tgbotapi.BotAPI
	sender     sender
	dispatcher *Dispatcher
	sched      JobScheduler
	log        logrus.FieldLogger
}

// NewTelegram authenticates with token and returns a ready transport.
func NewTelegram(token string, d *Dispatcher, sched JobScheduler, debug bool, log logrus.FieldLogger) (*Telegram, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := tgbotapi.SetLogger(log); err != nil {
		return nil, err
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	log.WithField("username", api.Self.UserName).Info("Authorized on Telegram")

	return &Telegram{
		api:        api,
		sender:     api,
		dispatcher: d,
		sched:      sched,
		log:        log,
	}, nil
}

// Run polls for updates until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = DefaultPollTimeout
	updates := t.api.GetUpdatesChan(u)
	t.log.Info("Bot is polling for updates")

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			t.log.Info("Stopped polling")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}

	name := msg.Command()
	log := t.log.WithFields(logrus.Fields{"chat_id": msg.Chat.ID, "command": name})
	if !t.dispatcher.Knows(name) {
		log.Debug("Ignoring unknown command")
		return
	}

	args := msg.CommandArguments()
	r := &chatReplier{sender: t.sender, chatID: msg.Chat.ID}
	err := t.sched.Submit(strconv.FormatInt(msg.Chat.ID, 10), func(jobCtx context.Context) {
		if err := t.dispatcher.Handle(jobCtx, name, args, r); err != nil {
			log.WithError(err).Error("Failed to handle command")
		}
	})

	switch {
	case err == nil:
	case core.IsRetryable(err):
		log.WithError(err).Warn("Command deferred, asking to retry")
		if err := r.Reply(ctx, MsgBusy); err != nil {
			log.WithError(err).Error("Failed to send reply")
		}
	default:
		log.WithError(err).Warn("Command dropped")
	}
}

// chatReplier sends replies to one chat, splitting text that exceeds
// MaxMessageLength.
type chatReplier struct {
	sender sender
	chatID int64
}

func (c *chatReplier) Reply(_ context.Context, text string) error {
	for _, chunk := range util.ChunkLines(text, MaxMessageLength) {
		// Telegram rejects empty messages.
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		if _, err := c.sender.Send(tgbotapi.NewMessage(c.chatID, chunk)); err != nil {
			return err
		}
	}
	return nil
}
