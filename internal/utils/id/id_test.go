package id

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-abc")
	assert.Equal(t, "run-abc", RunIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(ctx))
	assert.Equal(t, ctx, WithRunID(ctx, ""))
}

func TestGeneratedIdentifiersArePrefixedAndUnique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.True(t, strings.HasPrefix(a, "run-"))
	assert.True(t, strings.HasPrefix(NewRequestID(), "req-"))
	assert.NotEqual(t, a, b)
}
