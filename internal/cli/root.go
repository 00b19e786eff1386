package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/botsched/internal/config"
	"github.com/me/botsched/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string

	logger    *slog.Logger
	logCloser io.Closer
	client    *Client
)

// defaultServer returns the default API URL, checking BOTSCHED_SERVER first.
func defaultServer() string {
	if s := os.Getenv("BOTSCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8090"
}

// NewRootCmd creates the root cobra command for the botsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "botsched",
		Short: "botsched runs command-based robot programs",
		Long: `botsched drives a YAML robot program through a cooperative command
scheduler at a fixed control-cycle period, with an HTTP API for live
state, operator controls and run history.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Environment fills in logging flags left at their defaults.
			cfg := config.DefaultRunConfig()
			if err := config.ApplyEnv(&cfg); err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("log-level") {
				flagLogLevel = cfg.LogLevel
			}
			if !flags.Changed("log-format") {
				flagLogFormat = cfg.LogFormat
			}
			if !flags.Changed("log-file") {
				flagLogFile = cfg.LogFile
			}
			if flagDebug {
				flagLogLevel = "debug"
			}
			w := cmd.ErrOrStderr()
			if flagLogFile != "" {
				fw := logging.NewFileWriter(flagLogFile, logging.DefaultFileOptions())
				logCloser = fw
				w = fw
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, w)
			client = NewClient(flagServer, logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				err := logCloser.Close()
				logCloser = nil
				if err != nil {
					return fmt.Errorf("close log file: %w", err)
				}
			}
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "botsched API URL for status/cancel/station (or BOTSCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")
	root.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file with size-based rotation")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newHistoryCmd(),
		newStatusCmd(),
		newCancelCmd(),
		newStationCmd(),
	)

	return root
}
