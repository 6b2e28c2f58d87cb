// Package upstream is the HTTP client for the platform's public web API.
//
// It exposes one method per logical call (user summary, post page, post
// detail, video URL), normalizes the wire format into the models types and
// classifies every failure into a kind from pkg/errors. Each call reports
// the quota units it consumed, zero when no HTTP request was attempted.
//
// Anti-bot responses are detected two ways: explicit status codes (401,
// 403, 429) and the login wall that serves HTML under a 200.
package upstream
