// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/sidechat/internal/config"
	"github.com/jeranaias/sidechat/internal/credstore"
	"github.com/jeranaias/sidechat/internal/server"
	"github.com/jeranaias/sidechat/internal/util"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		addr        string
		openBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the chat panel on a loopback address",
		Example: `  sidechat serve
  sidechat serve --addr 127.0.0.1:9000 --open`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
				if err := a.cfg.Validate(); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("open") {
				a.cfg.Server.OpenBrowser = openBrowser
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer credstore.Close(store)

			srv := server.New(a.cfg, a.newClient(), store)
			ln, err := srv.Listen()
			if err != nil {
				return err
			}

			url := "http://" + ln.Addr().String() + "/"
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", paint(titleStyle, "sidechat panel:"), url)
			fmt.Fprintln(cmd.OutOrStdout(), paint(dimStyle, "Press Ctrl+C to stop."))
			if a.cfg.Server.OpenBrowser {
				if err := util.OpenInBrowser(url); err != nil {
					log.Warn().Err(err).Str("component", "server").Msg("could not open browser")
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Serve(ctx, ln)
			})
			g.Go(func() error {
				// Live reload is optional; the panel keeps working without it.
				if err := config.Watch(ctx, a.cfgPath, srv.ApplyConfig); err != nil {
					log.Warn().Err(err).Str("component", "config").Msg("config watch disabled")
				}
				return nil
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8787)")
	cmd.Flags().BoolVar(&openBrowser, "open", false, "open the panel in the default browser")
	return cmd
}
