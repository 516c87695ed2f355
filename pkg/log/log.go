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

// Package log builds the slog handlers the shell logs through.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/term"
)

const (
	FormatPretty = "pretty"
	FormatPlain  = "plain"

	// SessionKey is the attribute shown in the first column of plain output.
	SessionKey = "session"
)

var ErrUnknownFormat = errors.New("unknown log format")

// writerFromTarget returns a writer given a target specification.
func writerFromTarget(target string) (io.Writer, error) {
	switch target {
	case "builtin:stderr":
		return os.Stderr, nil
	case "builtin:stdout":
		return os.Stdout, nil
	case "builtin:discard":
		return io.Discard, nil
	default:
		if strings.Contains(target, "/") {
			parent := filepath.Dir(target)
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}

		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}

		return out, nil
	}
}

// writer returns a writer which writes to multiple target specifications.
func writer(targets []string) (io.Writer, error) {
	if len(targets) == 1 {
		return writerFromTarget(targets[0])
	}

	writers := []io.Writer{}
	for _, target := range targets {
		writer, err := writerFromTarget(target)
		if err != nil {
			return nil, err
		}

		writers = append(writers, writer)
	}

	return io.MultiWriter(writers...), nil
}

// ParseLevel accepts the slog level names in any case.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("parsing log level: %w", err)
	}
	return l, nil
}

// New returns a handler writing to every target of logPolicy in the given
// format. Pretty output is rendered by charmbracelet/log.
func New(format string, logPolicy []string, level slog.Level) (slog.Handler, error) {
	out, err := writer(logPolicy)
	if err != nil {
		return nil, fmt.Errorf("opening log targets: %w", err)
	}

	switch format {
	case FormatPretty:
		return charmlog.NewWithOptions(out, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmlog.Level(level),
		}), nil
	case FormatPlain:
		return Handler(out, level), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

const (
	reset   = 0
	yellow  = 33
	magenta = 35
	gray    = 37
)

func isTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case *os.File:
		return term.IsTerminal(int(v.Fd()))
	default:
		return false
	}
}

func color(w io.Writer, color int) string {
	if !isTerminal(w) {
		return ""
	}

	return fmt.Sprintf("\x1b[%dm", color)
}

func levelToColor(r slog.Record) int {
	switch r.Level {
	case slog.LevelError:
		return magenta
	case slog.LevelWarn:
		return yellow
	default:
		return gray
	}
}

func levelEmoji(r slog.Record) string {
	switch r.Level {
	case slog.LevelError:
		return "❌ "
	case slog.LevelWarn:
		return "⚠️ "
	case slog.LevelInfo:
		return "ℹ️ "
	default:
		return "❕"
	}
}

// Handler returns the plain line handler. Records carrying a session
// attribute get its first eight characters as a prefix column.
func Handler(out io.Writer, level slog.Level) slog.Handler {
	return &handler{out: out, level: level, mu: &sync.Mutex{}}
}

type handler struct {
	level slog.Level
	out   io.Writer
	attrs []slog.Attr

	// shared with every handler derived through WithAttrs
	mu *sync.Mutex
}

func (h *handler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handler{
		level: h.level,
		out:   h.out,
		attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
		mu:    h.mu,
	}
}

func (h *handler) session(r slog.Record) string {
	var session string
	for _, a := range h.attrs {
		if a.Key == SessionKey {
			session = a.Value.String()
			break
		}
	}
	if session == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == SessionKey {
				session = a.Value.String()
				return false
			}
			return true
		})
	}
	if len(session) > 8 {
		session = session[:8]
	}
	return session
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	session := h.session(r)

	h.mu.Lock()
	defer h.mu.Unlock()

	c := color(h.out, levelToColor(r))
	_, err := fmt.Fprintf(h.out, "%s %s%-8s|%s %s%s%s\n", levelEmoji(r), c, session, color(h.out, reset), c, r.Message, color(h.out, reset))
	return err
}

// This handler doesn't support groups.
func (h *handler) WithGroup(string) slog.Handler { return h }
