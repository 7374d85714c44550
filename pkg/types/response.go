// Package types holds the JSON envelopes shared by every HTTP response.
package types

// SuccessEnvelope wraps successful response payloads.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error body. Message is always safe to show a
// client; internal detail stays in the logs.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps failed response payloads.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
