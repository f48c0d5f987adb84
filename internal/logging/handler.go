// Package logging provides the compact slog handler used by the gateway:
// one line per record with short attr pairs, long text rendered as an
// indented block below the line.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ANSI color codes.
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiGray   = "\033[90m"

	padding = "  " // left padding to align with console header
)

// defaultBlockAttrs are the attr keys whose values are multi-line text
// (message previews, backend replies, heartbeat prompts). They render as
// indented blocks instead of inline key=value pairs.
var defaultBlockAttrs = []string{"preview", "reply", "content", "prompt"}

// Options configures a Handler.
type Options struct {
	Level slog.Level
	Color bool
	// BlockAttrs overrides the keys rendered as indented blocks. Nil
	// keeps the defaults.
	BlockAttrs []string
}

// Handler is a compact, optionally colored slog handler.
type Handler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Level
	color     bool
	blockKeys map[string]bool
	attrs     []slog.Attr
}

// NewHandler creates a new log handler.
func NewHandler(w io.Writer, opts *Options) *Handler {
	if opts == nil {
		opts = &Options{}
	}
	keys := opts.BlockAttrs
	if keys == nil {
		keys = defaultBlockAttrs
	}
	blockKeys := make(map[string]bool, len(keys))
	for _, k := range keys {
		blockKeys[k] = true
	}
	return &Handler{
		w:         w,
		mu:        &sync.Mutex{},
		level:     opts.Level,
		color:     opts.Color,
		blockKeys: blockKeys,
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var inline string
	var blocks []string
	collect := func(a slog.Attr) bool {
		if h.blockKeys[a.Key] {
			blocks = append(blocks, a.Value.String())
		} else {
			inline += h.fmtAttr(a)
		}
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	var sb strings.Builder
	h.writeLine(&sb, r, inline)
	for _, text := range blocks {
		h.writeBlock(&sb, text)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write([]byte(sb.String()))
	return err
}

// writeLine renders the record header. Terminal output gets a short
// timestamp; file output gets the full date.
func (h *Handler) writeLine(sb *strings.Builder, r slog.Record, inline string) {
	lvl := levelLabel(r.Level)
	if h.color {
		ts := r.Time.Format("15:04:05")
		fmt.Fprintf(sb, "%s%s%s%s %s %s%s\n",
			padding,
			ansiGray, ts, ansiReset,
			colorLevel(r.Level, lvl),
			r.Message, inline)
		return
	}
	fmt.Fprintf(sb, "%s%s %s %s%s\n", padding, r.Time.Format("2006-01-02 15:04:05"), lvl, r.Message, inline)
}

func (h *Handler) writeBlock(sb *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		if h.color {
			fmt.Fprintf(sb, "%s  %s│%s %s\n", padding, ansiGray, ansiReset, line)
		} else {
			fmt.Fprintf(sb, "%s  | %s\n", padding, line)
		}
	}
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(combined, h.attrs)
	copy(combined[len(h.attrs):], attrs)
	return &Handler{
		w: h.w, mu: h.mu, level: h.level, color: h.color,
		blockKeys: h.blockKeys, attrs: combined,
	}
}

func (h *Handler) WithGroup(string) slog.Handler {
	return h
}

func (h *Handler) fmtAttr(a slog.Attr) string {
	if !h.color {
		return fmt.Sprintf(" %s=%s", a.Key, a.Value.String())
	}
	// Error values stand out; everything else is dimmed key, plain value.
	if a.Key == "err" || a.Key == "error" {
		return fmt.Sprintf(" %s%s%s=%s%s%s", ansiGray, a.Key, ansiReset, ansiRed, a.Value.String(), ansiReset)
	}
	return fmt.Sprintf(" %s%s%s=%s", ansiGray, a.Key, ansiReset, a.Value.String())
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERR"
	case level >= slog.LevelWarn:
		return "WRN"
	case level >= slog.LevelInfo:
		return "INF"
	default:
		return "DBG"
	}
}

func colorLevel(level slog.Level, label string) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed + label + ansiReset
	case level >= slog.LevelWarn:
		return ansiYellow + label + ansiReset
	case level >= slog.LevelInfo:
		return ansiCyan + label + ansiReset
	default:
		return ansiGray + label + ansiReset
	}
}
