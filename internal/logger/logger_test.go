// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"", zerolog.InfoLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"off", zerolog.Disabled, false},
		{"loud", zerolog.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestComponentFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "debug")
	defer Close()

	InfoCF("chat", "Turn resolved", map[string]interface{}{"turns": 3})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "chat", entry["component"])
	assert.Equal(t, "Turn resolved", entry["message"])
	assert.EqualValues(t, 3, entry["turns"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "warn")
	defer Close()

	DebugCF("x", "hidden", nil)
	InfoCF("x", "hidden", nil)
	WarnCF("x", "shown", nil)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wattchat.log")
	require.NoError(t, Init("info", path))

	ErrorCF("api", "Request failed", map[string]interface{}{"status": 500})
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"status":500`))

	// After Close logging is discarded again.
	InfoCF("api", "dropped", nil)
}

func TestInitRejectsBadLevel(t *testing.T) {
	err := Init("chatty", filepath.Join(t.TempDir(), "x.log"))
	assert.Error(t, err)
}
