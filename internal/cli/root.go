// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sidechat/internal/cloud"
	"github.com/jeranaias/sidechat/internal/config"
	"github.com/jeranaias/sidechat/internal/credstore"
	"github.com/jeranaias/sidechat/internal/i18n"
	"github.com/jeranaias/sidechat/internal/logging"
	"github.com/jeranaias/sidechat/internal/server"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app carries what every command needs once flags are parsed.
type app struct {
	configFlag string
	logLevel   string
	locale     string

	cfgPath string
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "sidechat",
		Short:         "Chat with a DeepSeek-compatible model from a side panel or the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFlag, "config", "", "config file (default ~/.sidechat/config.toml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.locale, "locale", "", "interface language, e.g. en or zh-CN")

	root.AddCommand(
		newServeCommand(a),
		newChatCommand(a),
		newAskCommand(a),
		newKeyCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	server.Version = Version
	if err := NewRootCommand().Execute(); err != nil {
		if errors.Is(err, errReported) {
			return 1
		}
		fmt.Fprintln(os.Stderr, paint(errorStyle, "Error:"), err)
		return 1
	}
	return 0
}

// load reads the config and applies the global flags.
func (a *app) load() error {
	path := a.configFlag
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.locale != "" {
		cfg.UI.Locale = a.locale
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return err
	}

	a.cfgPath = path
	a.cfg = cfg
	return nil
}

func (a *app) openStore() (credstore.Store, error) {
	c := a.cfg.Credentials
	return credstore.Open(credstore.Options{
		Backend: c.Backend,
		Path:    c.Path,
		Name:    c.Name,
		Seal:    c.Seal,
	})
}

func (a *app) newClient() *cloud.Client {
	client := cloud.NewClient(a.cfg.API.BaseURL, a.cfg.API.Model).
		WithRateLimit(a.cfg.API.RequestsPerMinute)
	if a.cfg.API.TimeoutSecs > 0 {
		client = client.WithHeaderTimeout(time.Duration(a.cfg.API.TimeoutSecs) * time.Second)
	}
	return client
}

func (a *app) localizer() *i18n.Localizer {
	return i18n.New(a.cfg.UI.Locale)
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No config needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sidechat %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}
