// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package i18n holds the user-facing strings of the chat surfaces in
// English and Simplified Chinese.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	CopyLabel          = "copy.label"
	CopiedLabel        = "copy.copied"
	CopyFailedLabel    = "copy.failed"
	PromptAPIKey       = "prompt.api_key"
	ErrorPrefix        = "error.prefix"
	NoAPIKey           = "error.no_api_key"
	ErrHTTPStatus      = "error.http_status"
	ErrTransport       = "error.transport"
	ErrBusy            = "error.busy"
	InputPlaceholder   = "input.placeholder"
	SendLabel          = "input.send"
	CredentialSaved    = "credential.saved"
	CredentialCleared  = "credential.cleared"
	CredentialNotFound = "credential.not_found"
)

// supported lists the locales with a full catalog. The first is the fallback.
var supported = []language.Tag{language.English, language.SimplifiedChinese}

var matcher = language.NewMatcher(supported)

var builder = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	set := func(tag language.Tag, entries map[string]string) {
		for key, msg := range entries {
			// SetString only fails on malformed tags, and these are constants.
			_ = b.SetString(tag, key, msg)
		}
	}

	set(language.English, map[string]string{
		CopyLabel:          "Copy",
		CopiedLabel:        "Copied!",
		CopyFailedLabel:    "Copy failed",
		PromptAPIKey:       "Please enter your DeepSeek API key:",
		ErrorPrefix:        "Sorry, an error occurred while processing your request. ",
		NoAPIKey:           "No API key is set; the conversation cannot continue.",
		ErrHTTPStatus:      "HTTP error! status: %d",
		ErrTransport:       "the connection was interrupted: %s",
		ErrBusy:            "Please wait for the current reply to finish.",
		InputPlaceholder:   "Type a message...",
		SendLabel:          "Send",
		CredentialSaved:    "API key saved.",
		CredentialCleared:  "API key removed.",
		CredentialNotFound: "No API key is stored.",
	})

	set(language.SimplifiedChinese, map[string]string{
		CopyLabel:          "复制",
		CopiedLabel:        "已复制!",
		CopyFailedLabel:    "复制失败",
		PromptAPIKey:       "请输入您的DeepSeek API密钥:",
		ErrorPrefix:        "对不起，处理您的请求时出现错误。",
		NoAPIKey:           "未设置API密钥，无法继续对话。",
		ErrHTTPStatus:      "HTTP error! status: %d",
		ErrTransport:       "连接中断：%s",
		ErrBusy:            "请等待当前回复完成。",
		InputPlaceholder:   "输入消息...",
		SendLabel:          "发送",
		CredentialSaved:    "API密钥已保存。",
		CredentialCleared:  "API密钥已删除。",
		CredentialNotFound: "尚未保存API密钥。",
	})

	return b
}

// Localizer formats messages for one locale.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a Localizer for the closest supported match of locale.
// Unknown or empty locales get English.
func New(locale string) *Localizer {
	tag := Match(locale)
	return &Localizer{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(builder)),
	}
}

// Match maps a BCP 47 locale string to a supported tag.
func Match(locale string) language.Tag {
	if locale == "" {
		return supported[0]
	}
	desired, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(desired) == 0 {
		return supported[0]
	}
	_, idx, conf := matcher.Match(desired...)
	if conf == language.No {
		return supported[0]
	}
	return supported[idx]
}

// Tag returns the matched locale.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// T formats the message for key.
func (l *Localizer) T(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Labels returns the strings a display surface needs up front.
func (l *Localizer) Labels() map[string]string {
	keys := []string{CopyLabel, CopiedLabel, CopyFailedLabel, PromptAPIKey, InputPlaceholder, SendLabel}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = l.T(k)
	}
	return out
}
