// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for sidechat.
//
// Configuration is read from ~/.sidechat/config.toml (or a path given with
// --config), filled with defaults, overridden by SIDECHAT_* environment
// variables and validated.
//
// # Key Types
//
//   - Config: root configuration structure
//   - APIConfig, CredentialsConfig, UIConfig, ServerConfig, LogConfig: sections
//   - ValidateErrors: every validation problem found, not just the first
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := cloud.NewClient(cfg.API.BaseURL, cfg.API.Model)
//
// Watch reloads the file on change; the panel host uses it to apply model,
// endpoint and locale changes without a restart:
//
//	go config.Watch(ctx, path, func(cfg *config.Config) { ... })
package config
