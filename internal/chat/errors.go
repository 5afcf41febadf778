// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialMissing means no API key was stored and none was given
	// when asked.
	ErrCredentialMissing = errors.New("API key not set")

	// ErrBusy means a message is already in flight for this session.
	ErrBusy = errors.New("a reply is still streaming")
)

// TransportError is a failure to reach the endpoint or to keep reading its
// stream. The in-flight message is discarded.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
