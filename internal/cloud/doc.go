// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to an OpenAI-compatible chat completion endpoint.
//
// The client only opens streaming requests: it sends the current user
// message with stream=true and hands the response body to the caller, who
// decodes it with package stream. Non-2xx responses become *HTTPError values
// that match the package sentinels with errors.Is.
//
// # Key Types
//
//   - Client: endpoint, model, outbound rate limit
//   - ChatRequest: request body for chat completions
//   - HTTPError: non-2xx response with its status and API error code
//
// # Usage
//
//	client := cloud.NewClient(cloud.DefaultEndpoint, cloud.DefaultModel).
//	    WithRateLimit(20)
//	body, err := client.Stream(ctx, apiKey, "Hello")
//	if err != nil {
//	    return err
//	}
//	defer body.Close()
//
// # Security
//
// API keys are never logged. Logs carry a short SHA-256 fingerprint from
// KeyFingerprint instead.
package cloud
