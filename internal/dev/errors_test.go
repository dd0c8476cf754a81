package dev

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	captured := NewError("messenger", "market.actions", errors.New("broken pipe"), map[string]interface{}{"body": "{}"})

	assert.Equal(t, "messenger", captured.Component)
	assert.Equal(t, "market.actions", captured.Name)
	assert.Equal(t, "broken pipe", captured.Error)
	assert.Equal(t, "{}", captured.Extra["body"])
	assert.False(t, captured.Time.IsZero())

	// The slug is the document identity, so it must be stable per error and
	// unique across errors.
	require.NotEmpty(t, captured.Slug())
	assert.Equal(t, captured.Slug(), captured.Slug())

	other := NewError("messenger", "market.actions", errors.New("broken pipe"), nil)
	assert.NotEqual(t, captured.Slug(), other.Slug())
}
