package trace

import (
	"encoding/json"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
)

// Format represents the output format for trace events.
type Format uint8

const (
	FormatAuto   Format = iota // pick from the output path
	FormatText                 // human-readable text
	FormatNDJSON               // newline-delimited JSON
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatNDJSON:
		return "ndjson"
	default:
		return "auto"
	}
}

// ParseFormat converts a string to Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson", "json":
		return FormatNDJSON, nil
	default:
		return FormatAuto, fmt.Errorf("invalid trace format: %q (expected: auto|text|ndjson)", s)
	}
}

// FormatEvent formats an event according to the specified format.
func FormatEvent(ev *Event, format Format) []byte {
	if format == FormatNDJSON {
		return formatNDJSON(ev)
	}
	return formatText(ev)
}

type jsonEvent struct {
	Time     string            `json:"time"`
	Seq      uint64            `json:"seq"`
	Kind     string            `json:"kind"`
	Scope    string            `json:"scope"`
	SpanID   uint64            `json:"span_id,omitempty"`
	ParentID uint64            `json:"parent_id,omitempty"`
	Doc      string            `json:"doc,omitempty"`
	Name     string            `json:"name"`
	Detail   string            `json:"detail,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func formatNDJSON(ev *Event) []byte {
	data, err := json.Marshal(jsonEvent{
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		Doc:      ev.Doc,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Extra:    ev.Extra,
	})
	if err != nil {
		// строки и числа всегда сериализуются; на всякий случай пишем имя
		data = fmt.Appendf(nil, `{"name":%q,"error":%q}`, ev.Name, err.Error())
	}
	return append(data, '\n')
}

// formatText: "15:04:05.000000 #seq scope [doc] →/← name (detail) {k=v}"
// doc is the last path element of the document URI.
func formatText(ev *Event) []byte {
	var sb strings.Builder
	sb.WriteString(ev.Time.Format("15:04:05.000000"))
	fmt.Fprintf(&sb, " #%-5d %-8s ", ev.Seq, ev.Scope)
	if ev.Doc != "" {
		sb.WriteString("[")
		sb.WriteString(path.Base(ev.Doc))
		sb.WriteString("] ")
	}

	if ev.ParentID > 0 {
		sb.WriteString("  ")
	}
	switch ev.Kind {
	case KindSpanBegin:
		sb.WriteString("→ ") // →
	case KindSpanEnd:
		sb.WriteString("← ") // ←
	case KindPoint:
		sb.WriteString("• ") // •
	case KindHeartbeat:
		sb.WriteString("♡ ") // ♡
	}
	sb.WriteString(ev.Name)

	if ev.Detail != "" {
		sb.WriteString(" (")
		sb.WriteString(ev.Detail)
		sb.WriteString(")")
	}

	if len(ev.Extra) > 0 {
		sb.WriteString(" {")
		for i, k := range slices.Sorted(maps.Keys(ev.Extra)) {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(ev.Extra[k])
		}
		sb.WriteString("}")
	}

	sb.WriteString("\n")
	return []byte(sb.String())
}
