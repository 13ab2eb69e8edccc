package logging

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// JournalHandler is a slog.Handler that forwards records to the systemd
// journal as structured fields, so journalctl can filter on them.
type JournalHandler struct {
	level slog.Leveler
	// bound holds attrs from WithAttrs, already resolved to journal
	// fields. Never mutated after construction.
	bound  map[string]string
	groups []string
}

// NewJournalHandler creates a journal handler gated at level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record with its mapped priority and one journal field
// per attribute. journal.Send writes MESSAGE and PRIORITY itself, so the
// field map carries only the identifier and the attrs. A send failure
// surfaces through the fan-out; the stdout handler still has the line.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]string, len(h.bound)+r.NumAttrs()+1)
	maps.Copy(fields, h.bound)
	fields["SYSLOG_IDENTIFIER"] = "viewfinder"

	r.Attrs(func(attr slog.Attr) bool {
		appendField(fields, h.groups, attr)
		return true
	})

	return journal.Send(r.Message, journalPriority(r.Level), fields)
}

// WithAttrs resolves the attrs to fields now rather than on every Handle.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]string, len(h.bound)+len(attrs))
	maps.Copy(bound, h.bound)
	for _, attr := range attrs {
		appendField(bound, h.groups, attr)
	}
	return &JournalHandler{level: h.level, bound: bound, groups: h.groups}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{
		level:  h.level,
		bound:  h.bound,
		groups: append(slices.Clone(h.groups), name),
	}
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func appendField(fields map[string]string, groups []string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		inner := groups
		if attr.Key != "" {
			inner = append(slices.Clone(groups), attr.Key)
		}
		for _, a := range attr.Value.Group() {
			appendField(fields, inner, a)
		}
		return
	}
	fields[fieldName(groups, attr.Key)] = fieldValue(attr.Value)
}

// fieldName builds a journald-legal field name: uppercase, [A-Z0-9_]
// only, no leading underscore or digit (those are reserved or rejected).
func fieldName(groups []string, key string) string {
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), "_0123456789")
	if name == "" {
		return "FIELD"
	}
	return name
}

func fieldValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return v.String()
	}
}

// IsJournalAvailable reports whether the journal socket is reachable.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
