// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testKey = "sk-test-abcdefghijklmnopqrstuvwxyz"

// =============================================================================
// REQUEST TESTS
// =============================================================================

func TestStream_RequestShape(t *testing.T) {
	var got ChatRequest
	var method string
	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "deepseek-chat")
	body, err := client.Stream(context.Background(), testKey, "Hello there")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "data: [DONE]\n\n", string(data))

	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "deepseek-chat", got.Model)
	require.True(t, got.Stream)
	require.Equal(t, []ChatMessage{{Role: "user", Content: "Hello there"}}, got.Messages)

	require.Equal(t, "Bearer "+testKey, headers.Get("Authorization"))
	require.Equal(t, "application/json", headers.Get("Content-Type"))
	require.Equal(t, "text/event-stream", headers.Get("Accept"))
}

func TestStream_NoKey(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "")
	_, err := client.Stream(context.Background(), "  ", "hi")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient("", "")
	require.Equal(t, DefaultEndpoint, client.Endpoint())
	require.Equal(t, DefaultModel, client.Model())

	client.SetModel("deepseek-coder")
	client.SetModel("")
	require.Equal(t, "deepseek-coder", client.Model())

	client.SetEndpoint("http://localhost:9/v1/chat/completions")
	require.Equal(t, "http://localhost:9/v1/chat/completions", client.Endpoint())
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestStream_HTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
	}{
		{"unauthorized", 401, `{"error":{"code":"invalid_api_key","message":"bad key"}}`, ErrAuthFailed, "bad key"},
		{"payment", 402, `{"error":{"message":"Insufficient Balance"}}`, ErrInsufficientCredits, "Insufficient Balance"},
		{"not found", 404, `not here`, ErrModelNotFound, "not here"},
		{"rate limited", 429, `{"error":{"code":429,"message":"slow down"}}`, ErrRateLimited, "slow down"},
		{"server error", 503, ``, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			body, err := NewClient(server.URL, "").Stream(context.Background(), testKey, "hi")
			require.Nil(t, body)

			var herr *HTTPError
			require.True(t, errors.As(err, &herr))
			require.Equal(t, tt.status, herr.Status)
			require.Equal(t, tt.message, herr.Message)
			if tt.sentinel != nil {
				require.ErrorIs(t, err, tt.sentinel)
			} else {
				require.NotErrorIs(t, err, ErrAuthFailed)
				require.NotErrorIs(t, err, ErrRateLimited)
			}
		})
	}
}

func TestHTTPError_Error(t *testing.T) {
	require.Equal(t, "HTTP 500", (&HTTPError{Status: 500}).Error())
	require.Equal(t, "HTTP 401: nope", (&HTTPError{Status: 401, Message: "nope"}).Error())
	require.Equal(t, "HTTP 429 [rate]: slow", (&HTTPError{Status: 429, Code: "rate", Message: "slow"}).Error())
}

func TestStream_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, "").Stream(context.Background(), testKey, "hi")
	require.Error(t, err)

	var herr *HTTPError
	require.False(t, errors.As(err, &herr))
}

// =============================================================================
// RATE LIMIT TESTS
// =============================================================================

func TestStream_RateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "").WithRateLimit(1)

	body, err := client.Stream(context.Background(), testKey, "first")
	require.NoError(t, err)
	body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Stream(ctx, testKey, "second")
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, int32(1), hits.Load())

	client.WithRateLimit(0)
	body, err = client.Stream(context.Background(), testKey, "third")
	require.NoError(t, err)
	body.Close()
	require.Equal(t, int32(2), hits.Load())
}

func TestKeyFingerprint(t *testing.T) {
	require.Equal(t, "none", KeyFingerprint(""))
	fp := KeyFingerprint(testKey)
	require.Len(t, fp, 8)
	require.Equal(t, fp, KeyFingerprint(testKey))
	require.NotEqual(t, fp, KeyFingerprint(testKey+"x"))
}
