// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/sidechat/internal/cloud"
	"github.com/jeranaias/sidechat/internal/credstore"
	"github.com/jeranaias/sidechat/internal/i18n"
	"github.com/jeranaias/sidechat/internal/markdown"
	"github.com/jeranaias/sidechat/internal/stream"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Completer opens a streaming completion for one user message.
// *cloud.Client implements it.
type Completer interface {
	Stream(ctx context.Context, apiKey, content string) (io.ReadCloser, error)
}

// Renderer turns accumulated markdown into HTML. It must be pure.
type Renderer interface {
	Render(text string) string
}

// Highlighter syntax-highlights the code blocks of rendered HTML.
type Highlighter interface {
	Highlight(html string) string
}

// Prompter asks the user for an API key. An empty answer declines.
type Prompter interface {
	PromptCredential(ctx context.Context, prompt string) (string, error)
}

// noHighlight leaves HTML unchanged.
type noHighlight struct{}

func (noHighlight) Highlight(html string) string { return html }

// =============================================================================
// SESSION
// =============================================================================

// Session is one conversation panel. Only one message may be in flight at a
// time; Send returns ErrBusy otherwise. Sessions share nothing, so several
// panels may run side by side.
type Session struct {
	id          string
	completer   Completer
	store       credstore.Store
	renderer    Renderer
	highlighter Highlighter
	prompter    Prompter
	loc         *i18n.Localizer
	logger      zerolog.Logger

	mu       sync.Mutex
	inFlight bool
	state    State
	lastErr  error
	messages []Message
}

// NewSession returns an idle session that authenticates with the key in store.
func NewSession(completer Completer, store credstore.Store) *Session {
	id := uuid.New().String()
	return &Session{
		id:          id,
		completer:   completer,
		store:       store,
		renderer:    markdown.NewRenderer(markdown.DefaultCopyLabel),
		highlighter: noHighlight{},
		loc:         i18n.New(""),
		logger:      log.With().Str("component", "chat").Str("session", id).Logger(),
	}
}

// WithRenderer sets the markdown renderer.
func (s *Session) WithRenderer(r Renderer) *Session {
	s.renderer = r
	return s
}

// WithHighlighter sets the highlighter called after each completed reply.
func (s *Session) WithHighlighter(h Highlighter) *Session {
	if h == nil {
		h = noHighlight{}
	}
	s.highlighter = h
	return s
}

// WithPrompter sets who to ask when no API key is stored. Without one a
// missing key fails immediately.
func (s *Session) WithPrompter(p Prompter) *Session {
	s.prompter = p
	return s
}

// WithLocalizer sets the language of system messages.
func (s *Session) WithLocalizer(l *i18n.Localizer) *Session {
	s.loc = l
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the state of the latest outbound message.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error that put the session in StateFailed, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Busy reports whether a message is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Messages returns a copy of the finished messages, oldest first.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Message returns the finished message with id.
func (s *Session) Message(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Clear forgets all finished messages. It does not affect a message in flight.
func (s *Session) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}

// =============================================================================
// SENDING
// =============================================================================

// Send submits text and streams the reply into display. It returns the
// completed assistant message.
//
// Blank text is ignored. HTTP, credential and transport failures are shown
// as a system message and returned. Cancelling ctx discards the reply and
// returns a zero Message with a nil error.
func (s *Session) Send(ctx context.Context, text string, display Display) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, nil
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Message{}, ErrBusy
	}
	s.inFlight = true
	s.state = StateSending
	s.lastErr = nil
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	user := newMessage(RoleUser, text, s.renderer.Render(text))
	user.Complete = true
	s.record(user)
	display.Append(user)

	key, err := s.credential(ctx)
	if err != nil {
		return s.fail(ctx, display, nil, err)
	}

	// Empty snapshot first, so the display can show a typing indicator.
	reply := newMessage(RoleAssistant, "", "")
	display.Publish(reply)

	body, err := s.completer.Stream(ctx, key, text)
	if err != nil {
		var herr *cloud.HTTPError
		if !errors.As(err, &herr) && !errors.Is(err, cloud.ErrRateLimited) {
			err = &TransportError{Err: err}
		}
		return s.fail(ctx, display, &reply, err)
	}
	defer body.Close()

	s.setState(StateStreaming, nil)
	s.logger.Debug().Str("message", reply.ID).Msg("streaming reply")

	return s.consume(ctx, body, display, reply)
}

// consume runs the decode, append, render and publish loop for one reply.
func (s *Session) consume(ctx context.Context, body io.Reader, display Display, reply Message) (Message, error) {
	var buf strings.Builder
	events := stream.Decode(ctx, body)

	for {
		var ev stream.Event
		var ok bool
		select {
		case <-ctx.Done():
			return s.fail(ctx, display, &reply, ctx.Err())
		case ev, ok = <-events:
		}

		if !ok {
			if ctx.Err() != nil {
				return s.fail(ctx, display, &reply, ctx.Err())
			}
			return s.fail(ctx, display, &reply, &TransportError{Err: io.ErrUnexpectedEOF})
		}

		switch ev.Kind {
		case stream.KindDelta:
			buf.WriteString(ev.Content)
			reply.RawText = buf.String()
			reply.RenderedHTML = s.renderer.Render(reply.RawText)
			display.Publish(reply)

		case stream.KindParseError:
			s.logger.Warn().Err(ev.Err).Str("message", reply.ID).Msg("skipping malformed stream line")

		case stream.KindDone:
			reply.RawText = buf.String()
			reply.RenderedHTML = s.renderer.Render(reply.RawText)
			reply.Complete = true
			s.record(reply)
			s.setState(StateCompleted, nil)

			display.Finalize(reply, s.highlighter.Highlight(reply.RenderedHTML))
			s.logger.Debug().Str("message", reply.ID).Int("chars", len(reply.RawText)).Msg("reply complete")
			return reply, nil

		case stream.KindError:
			if ctx.Err() != nil {
				return s.fail(ctx, display, &reply, ctx.Err())
			}
			return s.fail(ctx, display, &reply, &TransportError{Err: ev.Err})
		}
	}
}

// credential returns the stored key, asking the prompter when none is stored.
func (s *Session) credential(ctx context.Context) (string, error) {
	key, ok, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("credential store read failed")
	}
	if ok && strings.TrimSpace(key) != "" {
		return strings.TrimSpace(key), nil
	}

	if s.prompter == nil {
		return "", ErrCredentialMissing
	}
	answer, err := s.prompter.PromptCredential(ctx, s.loc.T(i18n.PromptAPIKey))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Warn().Err(err).Msg("credential prompt failed")
		return "", ErrCredentialMissing
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrCredentialMissing
	}

	if err := s.store.Set(ctx, answer); err != nil {
		// The key still works for this message; it just is not remembered.
		s.logger.Warn().Err(err).Msg("credential store write failed")
	}
	return answer, nil
}

// fail ends the current message. Cancellation is silent; every other error
// becomes a system message.
func (s *Session) fail(ctx context.Context, display Display, reply *Message, err error) (Message, error) {
	s.setState(StateFailed, err)
	if reply != nil {
		display.Discard(*reply)
	}

	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		s.logger.Debug().Err(err).Msg("message cancelled")
		return Message{}, nil
	}

	s.logger.Error().Err(err).Msg("message failed")

	text := s.describe(err)
	notice := newMessage(RoleSystem, text, s.renderer.Render(text))
	notice.Complete = true
	s.record(notice)
	display.Append(notice)

	return Message{}, err
}

// describe returns the localized system message for err.
func (s *Session) describe(err error) string {
	if errors.Is(err, ErrCredentialMissing) {
		return s.loc.T(i18n.NoAPIKey)
	}

	prefix := s.loc.T(i18n.ErrorPrefix)
	var herr *cloud.HTTPError
	var terr *TransportError
	switch {
	case errors.As(err, &herr):
		return prefix + s.loc.T(i18n.ErrHTTPStatus, herr.Status)
	case errors.As(err, &terr):
		return prefix + s.loc.T(i18n.ErrTransport, terr.Err.Error())
	default:
		return prefix + err.Error()
	}
}

func (s *Session) record(m Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

func (s *Session) setState(state State, err error) {
	s.mu.Lock()
	s.state = state
	s.lastErr = err
	s.mu.Unlock()
	s.logger.Debug().Str("state", state.String()).Msg("state change")
}
