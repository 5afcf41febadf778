// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who a message is from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one bubble in the panel. Displays receive copies; RawText of
// an assistant message only grows while it streams and is frozen once
// Complete is set.
type Message struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	RawText      string    `json:"raw_text"`
	RenderedHTML string    `json:"html"`
	Complete     bool      `json:"complete"`
	CreatedAt    time.Time `json:"created_at"`
}

func newMessage(role Role, text, rendered string) Message {
	return Message{
		ID:           uuid.New().String(),
		Role:         role,
		RawText:      text,
		RenderedHTML: rendered,
		CreatedAt:    time.Now(),
	}
}

// State is the lifecycle of the session's current outbound message.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateFailed
)

// String returns the state name used in logs and on the wire.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Display shows a session's messages. Calls for one session never overlap.
type Display interface {
	// Append shows a finished user or system message.
	Append(msg Message)
	// Publish replaces the in-flight assistant message with a newer snapshot.
	// The first call for a message has empty RawText.
	Publish(msg Message)
	// Finalize shows the completed assistant message. highlighted is
	// msg.RenderedHTML with code blocks syntax-highlighted.
	Finalize(msg Message, highlighted string)
	// Discard removes an in-flight assistant message that will not complete.
	Discard(msg Message)
}
