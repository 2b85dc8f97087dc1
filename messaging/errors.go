// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
)

// MatrixError represents a structured error response from the Matrix homeserver.
// Callers can use errors.As to extract the structured information:
//
//	var matrixErr *MatrixError
//	if errors.As(err, &matrixErr) {
//	    if matrixErr.Code == ErrCodeUnknownToken { ... }
//	}
type MatrixError struct {
	// Code is the Matrix error code (e.g., "M_FORBIDDEN", "M_UNKNOWN_TOKEN").
	Code string `json:"errcode"`
	// Message is the human-readable error description from the server.
	Message string `json:"error"`
	// SoftLogout is set on M_UNKNOWN_TOKEN when the session can be
	// recovered with a refresh token instead of a full login.
	SoftLogout bool `json:"soft_logout,omitempty"`
	// RetryAfterMS is set on M_LIMIT_EXCEEDED.
	RetryAfterMS int64 `json:"retry_after_ms,omitempty"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Matrix error codes the realtime client acts on. M_UNKNOWN_TOKEN is a
// rejected access token; M_UNKNOWN is a generic server failure.
const (
	ErrCodeUnknownToken = "M_UNKNOWN_TOKEN"
	ErrCodeUnknown      = "M_UNKNOWN"
)

// IsMatrixError checks whether err is a *MatrixError with the given error code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}

// IsUnknownToken reports whether err is the homeserver rejecting the
// access token as unknown, expired or revoked.
func IsUnknownToken(err error) bool {
	return IsMatrixError(err, ErrCodeUnknownToken)
}
