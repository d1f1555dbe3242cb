// Package present renders structured log events for a terminal. It knows
// nothing about how those events were produced — every other package logs
// through go.uber.org/zap without any awareness that a human might be
// reading a terminal on the other end. Styling lives here, at the edge,
// and nowhere else.
package present

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	colorReset  = "\x1b[0m"
	colorGray   = "\x1b[90m"
	colorBlue   = "\x1b[34m"
	colorYellow = "\x1b[33m"
	colorRed    = "\x1b[31m"
	colorBold   = "\x1b[1m"
)

func levelColor(lvl zapcore.Level) string {
	switch lvl {
	case zapcore.DebugLevel:
		return colorGray
	case zapcore.InfoLevel:
		return colorBlue
	case zapcore.WarnLevel:
		return colorYellow
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorRed
	default:
		return colorReset
	}
}

// Core is a zapcore.Core that formats entries as short, colorized lines
// for a terminal instead of JSON. Attach it alongside (not instead of) a
// structured core when both a machine-readable log and a human-readable
// stream are wanted.
type Core struct {
	enabler zapcore.LevelEnabler
	out     io.Writer
	mu      *sync.Mutex
	fields  []zapcore.Field
	color   bool
}

// NewCore builds a terminal-rendering Core writing to out. color controls
// whether ANSI escapes are emitted; disable it when out isn't a TTY.
func NewCore(out io.Writer, enabler zapcore.LevelEnabler, color bool) *Core {
	return &Core{enabler: enabler, out: out, mu: &sync.Mutex{}, color: color}
}

func (c *Core) Enabled(lvl zapcore.Level) bool { return c.enabler.Enabled(lvl) }

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &Core{enabler: c.enabler, out: c.out, mu: c.mu, fields: merged, color: c.color}
}

func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	line := c.render(ent, append(append([]zapcore.Field{}, c.fields...), fields...))
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, line)
	return err
}

func (c *Core) Sync() error {
	if s, ok := c.out.(interface{ Sync() error }); ok {
		return s.Sync()
	}
	return nil
}

func (c *Core) render(ent zapcore.Entry, fields []zapcore.Field) string {
	ts := ent.Time.Format(time.TimeOnly)
	level := strings.ToUpper(ent.Level.String())

	var b strings.Builder
	if c.color {
		b.WriteString(colorGray)
		b.WriteString(ts)
		b.WriteString(colorReset)
		b.WriteByte(' ')
		b.WriteString(levelColor(ent.Level))
		b.WriteString(colorBold)
		fmt.Fprintf(&b, "%-5s", level)
		b.WriteString(colorReset)
	} else {
		fmt.Fprintf(&b, "%s %-5s", ts, level)
	}

	b.WriteByte(' ')
	if ent.LoggerName != "" {
		fmt.Fprintf(&b, "[%s] ", ent.LoggerName)
	}
	b.WriteString(ent.Message)

	if kv := renderFields(fields); kv != "" {
		b.WriteByte(' ')
		if c.color {
			b.WriteString(colorGray)
		}
		b.WriteString(kv)
		if c.color {
			b.WriteString(colorReset)
		}
	}
	return b.String()
}

func renderFields(fields []zapcore.Field) string {
	if len(fields) == 0 {
		return ""
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, enc.Fields[k]))
	}
	return strings.Join(parts, " ")
}
