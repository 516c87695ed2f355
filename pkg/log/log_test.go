// Copyright 2025 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chainguard-dev/clog"
	"github.com/stretchr/testify/require"
)

func TestHandlerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler(&buf, slog.LevelInfo))

	log.Debug("hidden")
	log.Info("shown")
	log.Warn("careful")
	log.Error("broken")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "| shown")
	require.Contains(t, lines[1], "⚠️")
	require.Contains(t, lines[2], "❌")
	require.NotContains(t, buf.String(), "\x1b[", "no colors outside a terminal")
}

func TestHandlerSessionColumn(t *testing.T) {
	var buf bytes.Buffer
	ctx := clog.WithLogger(context.Background(), clog.New(Handler(&buf, slog.LevelDebug)))

	clog.FromContext(ctx).With(SessionKey, "0123456789abcdef").Debug("with session")
	clog.FromContext(ctx).Info("without session", SessionKey, "fedcba98")
	clog.FromContext(ctx).Info("bare")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "01234567| with session")
	require.NotContains(t, lines[0], "89abcdef")
	require.Contains(t, lines[1], "fedcba98| without session")
	require.Contains(t, lines[2], "        | bare")
}

func TestWithAttrsKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	h := Handler(&buf, slog.LevelWarn).WithAttrs([]slog.Attr{slog.String(SessionKey, "s")})
	require.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, h.Enabled(context.Background(), slog.LevelWarn))
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "vfsh.log")

	for _, format := range []string{FormatPlain, FormatPretty} {
		h, err := New(format, []string{target, "builtin:discard"}, slog.LevelInfo)
		require.NoError(t, err)
		slog.New(h).Info("hello " + format)
	}

	b, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Contains(t, string(b), "hello plain")
	require.Contains(t, string(b), "hello pretty")

	_, err = New("json", []string{"builtin:discard"}, slog.LevelInfo)
	require.ErrorIs(t, err, ErrUnknownFormat)

	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err = New(FormatPlain, []string{filepath.Join(blocker, "x.log")}, slog.LevelInfo)
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}
