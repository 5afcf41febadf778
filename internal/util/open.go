// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenInBrowser opens target (a URL or file path) with the desktop's
// default handler. It does not wait for the handler to exit.
func OpenInBrowser(target string) error {
	cmd, err := openCommand(runtime.GOOS, target)
	if err != nil {
		return err
	}
	return cmd.Start()
}

func openCommand(goos, target string) (*exec.Cmd, error) {
	switch goos {
	case "windows":
		// The empty title argument stops start from treating a quoted target as the title.
		return exec.Command("cmd", "/c", "start", `""`, target), nil
	case "darwin":
		return exec.Command("open", target), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", target), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
