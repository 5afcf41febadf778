// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sidechat/internal/cloud"
	"github.com/jeranaias/sidechat/internal/credstore"
	"github.com/jeranaias/sidechat/internal/i18n"
	"github.com/jeranaias/sidechat/internal/util"
)

func newKeyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [KEY]",
			Short: "Store an API key (prompts when KEY is omitted)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(store credstore.Store) error {
					loc := a.localizer()
					var key string
					if len(args) == 1 {
						key = args[0]
					} else {
						k, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), loc.T(i18n.PromptAPIKey))
						if err != nil {
							return err
						}
						key = k
					}
					if key == "" {
						return fmt.Errorf("no key given")
					}
					if err := store.Set(cmd.Context(), key); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
						paint(successStyle, loc.T(i18n.CredentialSaved)), util.MaskSecret(key))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the stored key, masked",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(store credstore.Store) error {
					key, ok, err := store.Get(cmd.Context())
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), a.localizer().T(i18n.CredentialNotFound))
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n%s%s\n",
						label("Key:"), util.MaskSecret(key),
						label("Fingerprint:"), cloud.KeyFingerprint(key))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored key",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.withStore(func(store credstore.Store) error {
					if err := store.Delete(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), a.localizer().T(i18n.CredentialCleared))
					return nil
				})
			},
		},
	)
	return cmd
}

func (a *app) withStore(fn func(credstore.Store) error) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer credstore.Close(store)
	return fn(store)
}
