package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRunID generates an identifier for one agent run.
func NewRunID() string {
	return newIdentifier("run")
}

// NewRequestID generates an identifier for one inbound HTTP request.
func NewRequestID() string {
	return newIdentifier("req")
}

func newIdentifier(prefix string) string {
	body, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	}
	return fmt.Sprintf("%s-%s", prefix, body.String())
}
