// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/sidechat/internal/chat"
	"github.com/jeranaias/sidechat/internal/copybutton"
	"github.com/jeranaias/sidechat/internal/i18n"
	"github.com/jeranaias/sidechat/internal/markdown"
)

const (
	writeTimeout = 10 * time.Second
	// maxFrameSize bounds a single panel frame. Pasted prompts can be long.
	maxFrameSize = 1 << 20
)

// ============================================================================
// FRAMES
// ============================================================================

// Frame types.
const (
	FrameSend      = "send"
	FrameSetKey    = "set_key"
	FrameCancel    = "cancel"
	FrameCopy      = "copy"
	FrameClear     = "clear"
	FrameHello     = "hello"
	FrameMessage   = "message"
	FrameFinalize  = "finalize"
	FrameDiscard   = "discard"
	FrameState     = "state"
	FrameNeedKey   = "need_key"
	FrameCopyState = "copy_state"
	FrameError     = "error"
)

// InFrame is a frame sent by the panel.
type InFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Key       string `json:"key,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Block     int    `json:"block,omitempty"`
}

// OutFrame is a frame sent to the panel. Only the fields of its type are set.
type OutFrame struct {
	Type           string            `json:"type"`
	Message        *chat.Message     `json:"message,omitempty"`
	HTML           string            `json:"html,omitempty"`
	State          string            `json:"state,omitempty"`
	Prompt         string            `json:"prompt,omitempty"`
	MessageID      string            `json:"message_id,omitempty"`
	Block          *int              `json:"block,omitempty"`
	Label          string            `json:"label,omitempty"`
	Text           string            `json:"text,omitempty"`
	Locale         string            `json:"locale,omitempty"`
	Labels         map[string]string `json:"labels,omitempty"`
	MaxInputHeight int               `json:"max_input_height,omitempty"`
	CopyRevertMS   int               `json:"copy_revert_ms,omitempty"`
}

// ============================================================================
// PANEL CONNECTION
// ============================================================================

type buttonKey struct {
	messageID string
	block     int
}

// panelConn is one open panel: a websocket, its session and its copy
// buttons. It is the session's Display and Prompter.
type panelConn struct {
	srv     *Server
	ws      *websocket.Conn
	session *chat.Session
	loc     *i18n.Localizer
	labels  copybutton.Labels
	revert  time.Duration
	logger  zerolog.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	cancel    context.CancelFunc // in-flight send
	keyCh     chan string        // set while waiting for a key
	buttons   map[buttonKey]*copybutton.Button
	lastState chat.State

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newPanelConn(srv *Server, ws *websocket.Conn) *panelConn {
	ui := srv.uiConfig()
	loc := i18n.New(ui.Locale)
	pc := &panelConn{
		srv: srv,
		ws:  ws,
		loc: loc,
		labels: copybutton.Labels{
			Copy:   loc.T(i18n.CopyLabel),
			Copied: loc.T(i18n.CopiedLabel),
			Failed: loc.T(i18n.CopyFailedLabel),
		},
		revert:  time.Duration(ui.CopyRevertMS) * time.Millisecond,
		buttons: make(map[buttonKey]*copybutton.Button),
	}
	pc.session = chat.NewSession(srv.client, srv.store).
		WithRenderer(markdown.NewRenderer(pc.labels.Copy)).
		WithHighlighter(srv.highlighter).
		WithPrompter(pc).
		WithLocalizer(loc)
	pc.logger = log.With().Str("component", "server").Str("session", pc.session.ID()).Logger()
	return pc
}

// run serves the panel until the socket closes or ctx is done.
func (p *panelConn) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		p.wg.Wait()
		p.stopButtons()
		p.close()
		p.logger.Info().Msg("panel closed")
	}()

	go func() {
		<-ctx.Done()
		p.close()
	}()

	p.ws.SetReadLimit(maxFrameSize)
	p.logger.Info().Str("locale", p.loc.Tag().String()).Msg("panel opened")

	ui := p.srv.uiConfig()
	p.write(OutFrame{
		Type:           FrameHello,
		Locale:         p.loc.Tag().String(),
		Labels:         p.loc.Labels(),
		MaxInputHeight: ui.MaxInputHeight,
		CopyRevertMS:   ui.CopyRevertMS,
	})

	for {
		_, data, err := p.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Debug().Err(err).Msg("panel read failed")
			}
			return
		}

		var f InFrame
		if err := json.Unmarshal(data, &f); err != nil {
			p.logger.Warn().Err(err).Msg("ignoring malformed frame")
			continue
		}
		p.dispatch(ctx, f)
	}
}

func (p *panelConn) dispatch(ctx context.Context, f InFrame) {
	switch f.Type {
	case FrameSend:
		p.startSend(ctx, f.Text)
	case FrameSetKey:
		p.deliverKey(ctx, f.Key)
	case FrameCancel:
		p.mu.Lock()
		if p.cancel != nil {
			p.cancel()
		}
		p.mu.Unlock()
	case FrameCopy:
		p.copy(f.MessageID, f.Block)
	case FrameClear:
		p.session.Clear()
		p.stopButtons()
	default:
		p.logger.Warn().Str("type", f.Type).Msg("ignoring unknown frame")
	}
}

// startSend runs Send on its own goroutine so cancel and set_key frames
// can still be read.
func (p *panelConn) startSend(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		p.write(OutFrame{Type: FrameError, Text: p.loc.T(i18n.ErrBusy)})
		return
	}
	sendCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			p.cancel = nil
			p.mu.Unlock()
			cancel()
		}()

		p.sendState(chat.StateSending)
		_, err := p.session.Send(sendCtx, text, p)
		if errors.Is(err, chat.ErrBusy) {
			p.write(OutFrame{Type: FrameError, Text: p.loc.T(i18n.ErrBusy)})
		}
		p.sendState(p.session.State())
	}()
}

// ============================================================================
// DISPLAY
// ============================================================================

// Append implements chat.Display.
func (p *panelConn) Append(msg chat.Message) {
	p.write(OutFrame{Type: FrameMessage, Message: &msg})
}

// Publish implements chat.Display.
func (p *panelConn) Publish(msg chat.Message) {
	if msg.RawText != "" {
		p.sendState(chat.StateStreaming)
	}
	p.write(OutFrame{Type: FrameMessage, Message: &msg})
}

// Finalize implements chat.Display.
func (p *panelConn) Finalize(msg chat.Message, highlighted string) {
	p.write(OutFrame{Type: FrameFinalize, Message: &msg, HTML: highlighted})
}

// Discard implements chat.Display.
func (p *panelConn) Discard(msg chat.Message) {
	p.write(OutFrame{Type: FrameDiscard, Message: &msg})
}

func (p *panelConn) sendState(s chat.State) {
	p.mu.Lock()
	if s == p.lastState {
		p.mu.Unlock()
		return
	}
	p.lastState = s
	p.mu.Unlock()
	p.write(OutFrame{Type: FrameState, State: s.String()})
}

// ============================================================================
// CREDENTIAL PROMPT
// ============================================================================

// PromptCredential implements chat.Prompter by asking the panel for a key
// and waiting for its set_key frame.
func (p *panelConn) PromptCredential(ctx context.Context, prompt string) (string, error) {
	ch := make(chan string, 1)
	p.mu.Lock()
	p.keyCh = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.keyCh == ch {
			p.keyCh = nil
		}
		p.mu.Unlock()
	}()

	p.write(OutFrame{Type: FrameNeedKey, Prompt: prompt})

	select {
	case key := <-ch:
		return key, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// deliverKey answers a pending prompt, or stores the key directly when the
// panel sets one unprompted. An empty key declines a prompt.
func (p *panelConn) deliverKey(ctx context.Context, key string) {
	key = strings.TrimSpace(key)

	p.mu.Lock()
	if ch := p.keyCh; ch != nil {
		p.keyCh = nil
		p.mu.Unlock()
		ch <- key
		return
	}
	p.mu.Unlock()

	if key == "" {
		return
	}
	if err := p.srv.store.Set(ctx, key); err != nil {
		p.logger.Error().Err(err).Msg("storing API key failed")
		p.write(OutFrame{Type: FrameError, Text: p.loc.T(i18n.ErrorPrefix) + err.Error()})
		return
	}
	p.logger.Info().Msg("API key stored")
}

// ============================================================================
// COPY
// ============================================================================

func (p *panelConn) copy(messageID string, block int) {
	msg, ok := p.session.Message(messageID)
	if !ok {
		p.logger.Warn().Str("message", messageID).Msg("copy for unknown message")
		return
	}
	text, err := copybutton.Extract(msg.RenderedHTML, block)
	if err != nil {
		p.logger.Warn().Err(err).Str("message", messageID).Int("block", block).Msg("copy for unknown block")
		return
	}
	_ = p.button(messageID, block).Press(text)
}

func (p *panelConn) button(messageID string, block int) *copybutton.Button {
	key := buttonKey{messageID: messageID, block: block}

	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.buttons[key]; ok {
		return b
	}
	b := copybutton.NewButton(p.labels, p.revert, func(_ copybutton.State, label string) {
		blk := block
		p.write(OutFrame{Type: FrameCopyState, MessageID: messageID, Block: &blk, Label: label})
	}).WithClipboard(p.srv.clipboard)
	p.buttons[key] = b
	return b
}

func (p *panelConn) stopButtons() {
	p.mu.Lock()
	buttons := p.buttons
	p.buttons = make(map[buttonKey]*copybutton.Button)
	p.mu.Unlock()

	for _, b := range buttons {
		b.Stop()
	}
}

// ============================================================================
// SOCKET
// ============================================================================

// write sends one frame. Writes from the read loop, the send goroutine and
// copy timers are serialized.
func (p *panelConn) write(f OutFrame) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	_ = p.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := p.ws.WriteJSON(f); err != nil {
		p.logger.Debug().Err(err).Str("type", f.Type).Msg("frame write failed")
	}
}

func (p *panelConn) close() {
	p.closeOnce.Do(func() {
		p.writeMu.Lock()
		_ = p.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		p.writeMu.Unlock()
		_ = p.ws.Close()
	})
}
