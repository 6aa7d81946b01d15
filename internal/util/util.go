// Package util holds small internal helpers not committed to public API
// stability.
package util

import "github.com/google/uuid"

// NewID generates a unique identifier for runs and messages.
func NewID() string { return uuid.NewString() }

// ShortID generates a short identifier suitable for log-friendly handles.
func ShortID() string { return uuid.NewString()[:8] }
