/*
Package main is the entry point for rdapwatch.

rdapwatch is a Telegram bot that keeps a list of domain names in a text file
and, on request, looks up each domain's expiration date over RDAP and reports
it in local time. Commands:
  - /adddomains: append domains (one per line) to the list.
  - /checkdomains: look up every listed domain, one at a time.
  - /listdomains: show the list.
  - /cleardomains: delete the list.

Running the binary with no subcommand starts the bot. The add, list, clear,
check and convert subcommands drive the same components from the terminal
and need no bot token.

Settings come from defaults, an optional TOML file (--config), a .env file,
the environment and finally flags. An admin server exposing Prometheus
metrics and a health endpoint starts when --metrics-addr is set. SIGINT and
SIGTERM stop polling and drain the workers.
*/
package main

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
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/x-stp/rdapwatch/internal/bot"
	"github.com/x-stp/rdapwatch/internal/client"
	"github.com/x-stp/rdapwatch/internal/config"
	"github.com/x-stp/rdapwatch/internal/core"
	"github.com/x-stp/rdapwatch/internal/metrics"
	"github.com/x-stp/rdapwatch/internal/rdap"
	"github.com/x-stp/rdapwatch/internal/store"
	"github.com/x-stp/rdapwatch/internal/timeconv"
)

// Global flags (persistent across commands)
var (
	configFile  string
	envFile     string
	debug       bool
	domainsFile string
	endpoint    string
	timeout     time.Duration
	interval    time.Duration
	timezone    string
	logLevel    string
	metricsAddr string
	workers     int
)

var rootCmd = &cobra.Command{
	Use:           "rdapwatch",
	Short:         "rdapwatch - a chat bot reporting domain expiration dates over RDAP",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var addCmd = &cobra.Command{
	Use:   "add <domain>...",
	Short: "Append domains to the list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, bot.CmdAdd, strings.Join(args, "\n"))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the domain list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, bot.CmdList, "")
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the domain list",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, bot.CmdClear, "")
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Look up the expiration date of every listed domain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, bot.CmdCheck, "")
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <timestamp>",
	Short: "Render an ISO-8601 UTC timestamp in the display time zone",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a TOML configuration file")
	flags.StringVar(&envFile, "env-file", config.DefaultEnvFile, "Path to a .env file (ignored when absent)")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.StringVar(&domainsFile, "domains-file", store.DefaultPath, "Path to the domain list")
	flags.StringVar(&endpoint, "rdap-endpoint", rdap.DefaultEndpoint, "RDAP URL template, {domain} is replaced by the domain")
	flags.DurationVar(&timeout, "timeout", rdap.DefaultTimeout, "Timeout for one RDAP request")
	flags.DurationVar(&interval, "interval", core.DefaultLookupInterval, "Pause between consecutive lookups")
	flags.StringVar(&timezone, "timezone", timeconv.DefaultZone, "IANA time zone used to display dates")
	flags.StringVar(&logLevel, "log-level", logrus.InfoLevel.String(), "Log level (debug, info, warn, error)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Listen address for the metrics server (disabled when empty)")
	flags.IntVar(&workers, "workers", core.DefaultWorkers, "Number of workers handling chat commands")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(convertCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges file, env and flag settings. Flags only override when
// given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("domains-file") {
		cfg.Store.Path = domainsFile
	}
	if f.Changed("rdap-endpoint") {
		cfg.RDAP.Endpoint = endpoint
	}
	if f.Changed("timeout") {
		cfg.RDAP.Timeout = timeout
	}
	if f.Changed("interval") {
		cfg.RDAP.Interval = interval
	}
	if f.Changed("timezone") {
		cfg.Display.Timezone = timezone
	}
	if f.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if f.Changed("workers") {
		cfg.Bot.Workers = workers
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
	return log
}

// app bundles the components shared by the bot and the CLI subcommands.
type app struct {
	cfg        *config.Config
	log        *logrus.Logger
	conv       *timeconv.Converter
	dispatcher *bot.Dispatcher
}

// setup loads configuration and wires the components. A missing token is
// fatal when requireToken is set.
func setup(cmd *cobra.Command, requireToken bool) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	if err := cfg.Validate(requireToken); err != nil {
		if errors.Is(err, config.ErrMissingToken) {
			log.WithError(err).Fatal("Cannot start without a bot token")
		}
		return nil, err
	}

	httpCfg := client.DefaultConfig()
	httpCfg.RequestTimeout = cfg.RDAP.Timeout
	client.InitHTTPClient(httpCfg)

	lookup := rdap.NewClient(&rdap.Config{
		Endpoint:  cfg.RDAP.Endpoint,
		Timeout:   cfg.RDAP.Timeout,
		UserAgent: rdap.DefaultUserAgent,
	}, client.GetHTTPClient(), log)

	conv, err := timeconv.New(cfg.Display.Timezone, log)
	if err != nil {
		return nil, err
	}

	checker := core.NewChecker(lookup, conv, cfg.RDAP.Interval, log)
	st := store.New(cfg.Store.Path, log)

	log.WithFields(logrus.Fields{
		"domains_file": cfg.Store.Path,
		"endpoint":     cfg.RDAP.Endpoint,
		"interval":     cfg.RDAP.Interval,
		"timezone":     cfg.Display.Timezone,
	}).Debug("Configuration loaded")

	return &app{
		cfg:        cfg,
		log:        log,
		conv:       conv,
		dispatcher: bot.NewDispatcher(st, checker, log),
	}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd, true)
	if err != nil {
		return err
	}
	log := a.log

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Metrics.Addr != "" {
		metrics.EnableMetrics()
	}

	scheduler := core.NewScheduler(ctx, a.cfg.Bot.Workers, core.DefaultQueueCapacity, log)
	defer scheduler.Shutdown()

	tg, err := bot.NewTelegram(a.cfg.Bot.Token, a.dispatcher, scheduler, debug, log)
	if err != nil {
		return fmt.Errorf("connecting to Telegram: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tg.Run(gctx)
	})
	if a.cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, a.cfg.Metrics.Addr, log)
		})
	}

	err = g.Wait()
	log.Info("Shutting down...")
	return err
}

func runCommand(cmd *cobra.Command, name, args string) error {
	a, err := setup(cmd, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.dispatcher.Handle(ctx, name, args, bot.NewWriterReplier(cmd.OutOrStdout()))
}

func runConvert(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, false)
	if err != nil {
		return err
	}

	res := a.conv.Convert(args[0])
	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	if !res.OK {
		return fmt.Errorf("cannot parse timestamp %q", args[0])
	}
	return nil
}
