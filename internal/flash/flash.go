// Package flash keeps the last form result per browser session until it is shown once.
package flash

import (
	"context"
	"time"
)

// DefaultTTL bounds how long an unread result survives.
const DefaultTTL = 10 * time.Minute

// Result is one rendered form outcome: the submitted fields plus either
// the reply text or an error message.
type Result struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Message  string `json:"message"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Store holds at most one Result per session ID.
//
// Take returns nil, nil when nothing is stored. A value is removed by the
// Take that returns it.
type Store interface {
	Set(ctx context.Context, sessionID string, r *Result) error
	Take(ctx context.Context, sessionID string) (*Result, error)
	Close() error
}
