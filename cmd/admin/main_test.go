package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	valid := [][]string{
		{"sweep"},
		{"stats", "a1"},
		{"availability", "a1", "on"},
		{"availability", "a1", "off"},
	}
	for _, args := range valid {
		cmd, err := parseCommand(args)
		require.NoError(t, err, args)
		assert.NotNil(t, cmd, args)
	}

	invalid := [][]string{
		{"ban", "u1"},
		{"sweep", "extra"},
		{"stats"},
		{"availability", "a1"},
		{"availability", "a1", "maybe"},
	}
	for _, args := range invalid {
		_, err := parseCommand(args)
		assert.ErrorIs(t, err, errUsage, args)
	}
}

// Usage errors are reported before any configuration or connection is touched.
func TestRun_UsageErrorsNeedNoDatabase(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "bogus")
	assert.ErrorIs(t, run(context.Background(), nil), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"stats"}), errUsage)
}
