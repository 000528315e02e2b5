package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoCommand(t *testing.T) {
	withGlobals(t)

	out, err := captureOutput(t, runInfo)
	require.NoError(t, err)
	assert.Contains(t, out, "Page size:")
	assert.Contains(t, out, "Pool size:")
	assert.Contains(t, out, "Memlock limit:")
}

func TestInfoCommand_JSON(t *testing.T) {
	withGlobals(t)
	jsonOut = true

	out, err := captureOutput(t, runInfo)
	require.NoError(t, err)
	res := assertJSON(t, out)
	assert.Positive(t, res["page_size"])
	assert.Positive(t, res["pool_size"])
	assert.Zero(t, int(res["pool_size"].(float64))%int(res["page_size"].(float64)))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{in: 512, want: "512 bytes"},
		{in: 2048, want: "2.0 KiB"},
		{in: 512 << 10, want: "512.0 KiB"},
		{in: 100 << 20, want: "100.0 MiB"},
		{in: 1 << 30, want: "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.want, " ", "_"), func(t *testing.T) {
			assert.Equal(t, tt.want, formatBytes(tt.in))
		})
	}
}
