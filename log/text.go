package log

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spanlog/spanlog/trace"

	"github.com/cespare/xxhash/v2"
	"github.com/logrusorgru/aurora"
)

// TextFormatter renders one event as a human-readable line, or as a
// multi-line block for the pretty flavor. Output bytes are fully determined
// by the event and the config; ANSI decoration never changes field content.
type TextFormatter struct {
	Config FormatConfig
}

var spanColors = []aurora.Color{
	aurora.GreenFg,
	aurora.CyanFg,
	aurora.MagentaFg,
	aurora.YellowFg,
	aurora.BlueFg,
}

func (f *TextFormatter) Format(event *Event) []byte {
	switch f.Config.Flavor {
	case FlavorPretty:
		return f.formatPretty(event)
	case FlavorCompact:
		return f.formatCompact(event)
	default:
		return f.formatDefault(event)
	}
}

func (f *TextFormatter) formatDefault(event *Event) []byte {
	var builder strings.Builder
	if f.Config.DisplayTimestamp {
		builder.WriteString(event.Timestamp.Format(f.Config.TimestampFormat))
		builder.WriteString(" ")
	}
	if f.Config.DisplayLevel {
		builder.WriteString(f.levelString(event.Level))
		builder.WriteString(" ")
	}
	if f.Config.DisplayTarget && event.Target != "" {
		builder.WriteString("[")
		builder.WriteString(event.Target)
		builder.WriteString("] ")
	}
	if caller := f.callerString(event); caller != "" {
		builder.WriteString(caller)
		builder.WriteString(" ")
	}
	if thread := f.threadString(event); thread != "" {
		builder.WriteString("{")
		builder.WriteString(thread)
		builder.WriteString("} ")
	}
	f.writeSpanChain(&builder, event)
	builder.WriteString(event.Message)
	for _, field := range event.Fields {
		builder.WriteString(" ")
		builder.WriteString(field.Key)
		builder.WriteString("=")
		builder.WriteString(formatTextValue(field.Value))
	}
	f.writeServiceSuffix(&builder, event)
	builder.WriteString("\n")
	return []byte(builder.String())
}

func (f *TextFormatter) formatCompact(event *Event) []byte {
	var builder strings.Builder
	if f.Config.DisplayTimestamp {
		builder.WriteString(event.Timestamp.Format("15:04:05"))
		builder.WriteString(" ")
	}
	if f.Config.DisplayLevel {
		builder.WriteString(f.levelString(event.Level))
		builder.WriteString(" ")
	}
	if f.Config.DisplaySpanList && len(event.Spans) > 0 {
		for i, span := range event.Spans {
			if i > 0 {
				builder.WriteString(">")
			}
			builder.WriteString(f.spanName(span.Name))
		}
		builder.WriteString(": ")
	} else if f.Config.DisplayCurrentSpan {
		if span := event.CurrentSpan(); span != nil {
			builder.WriteString(f.spanName(span.Name))
			builder.WriteString(": ")
		}
	}
	builder.WriteString(event.Message)
	for _, field := range event.Fields {
		builder.WriteString(" ")
		builder.WriteString(field.Key)
		builder.WriteString("=")
		builder.WriteString(formatTextValue(field.Value))
	}
	builder.WriteString("\n")
	return []byte(builder.String())
}

func (f *TextFormatter) formatPretty(event *Event) []byte {
	var builder strings.Builder
	if f.Config.DisplayTimestamp {
		builder.WriteString(event.Timestamp.Format(f.Config.TimestampFormat))
		builder.WriteString(" ")
	}
	if f.Config.DisplayLevel {
		builder.WriteString(f.levelString(event.Level))
		builder.WriteString(" ")
	}
	builder.WriteString(event.Message)
	builder.WriteString("\n")
	if caller := f.callerString(event); caller != "" {
		builder.WriteString("    at ")
		builder.WriteString(caller)
		if f.Config.DisplayTarget && event.Target != "" {
			builder.WriteString(" in ")
			builder.WriteString(event.Target)
		}
		builder.WriteString("\n")
	} else if f.Config.DisplayTarget && event.Target != "" {
		builder.WriteString("    in ")
		builder.WriteString(event.Target)
		builder.WriteString("\n")
	}
	if f.Config.DisplaySpanList {
		for i := len(event.Spans) - 1; i >= 0; i-- {
			f.writePrettySpan(&builder, event.Spans[i])
		}
	} else if f.Config.DisplayCurrentSpan {
		if span := event.CurrentSpan(); span != nil {
			f.writePrettySpan(&builder, *span)
		}
	}
	for _, field := range event.Fields {
		builder.WriteString("    ")
		builder.WriteString(field.Key)
		builder.WriteString(" = ")
		builder.WriteString(formatTextValue(field.Value))
		builder.WriteString("\n")
	}
	if thread := f.threadString(event); thread != "" {
		builder.WriteString("    thread = ")
		builder.WriteString(thread)
		builder.WriteString("\n")
	}
	f.writePrettyService(&builder, event)
	return []byte(builder.String())
}

func (f *TextFormatter) writePrettySpan(builder *strings.Builder, span trace.Snapshot) {
	builder.WriteString("    in ")
	builder.WriteString(f.spanName(span.Name))
	if len(span.Attributes) > 0 {
		builder.WriteString(" with ")
		for i, attr := range span.Attributes {
			if i > 0 {
				builder.WriteString(", ")
			}
			builder.WriteString(attr.Key)
			builder.WriteString("=")
			builder.WriteString(formatTextValue(attr.Value))
		}
	}
	builder.WriteString("\n")
}

func (f *TextFormatter) writePrettyService(builder *strings.Builder, event *Event) {
	if f.Config.DisplayServiceName && event.Resource.ServiceName != "" {
		builder.WriteString("    service = ")
		if f.Config.DisplayServiceNamespace && event.Resource.ServiceNamespace != "" {
			builder.WriteString(event.Resource.ServiceNamespace)
			builder.WriteString("/")
		}
		builder.WriteString(event.Resource.ServiceName)
		builder.WriteString("\n")
	} else if f.Config.DisplayServiceNamespace && event.Resource.ServiceNamespace != "" {
		builder.WriteString("    namespace = ")
		builder.WriteString(event.Resource.ServiceNamespace)
		builder.WriteString("\n")
	}
	if f.Config.DisplayResource {
		for _, key := range event.Resource.AttributeKeys {
			builder.WriteString("    resource.")
			builder.WriteString(key)
			builder.WriteString(" = ")
			builder.WriteString(event.Resource.Attributes[key])
			builder.WriteString("\n")
		}
	}
}

// writeSpanChain renders the active span chain root to leaf before the
// message. The span list toggle wins over the current-span toggle.
func (f *TextFormatter) writeSpanChain(builder *strings.Builder, event *Event) {
	var spans []trace.Snapshot
	if f.Config.DisplaySpanList {
		spans = event.Spans
	} else if f.Config.DisplayCurrentSpan {
		if span := event.CurrentSpan(); span != nil {
			spans = []trace.Snapshot{*span}
		}
	}
	if len(spans) == 0 {
		return
	}
	for i, span := range spans {
		if i > 0 {
			builder.WriteString(">")
		}
		builder.WriteString(f.spanName(span.Name))
		if len(span.Attributes) > 0 {
			builder.WriteString("{")
			for j, attr := range span.Attributes {
				if j > 0 {
					builder.WriteString(",")
				}
				builder.WriteString(attr.Key)
				builder.WriteString("=")
				builder.WriteString(formatTextValue(attr.Value))
			}
			builder.WriteString("}")
		}
	}
	builder.WriteString(": ")
}

func (f *TextFormatter) writeServiceSuffix(builder *strings.Builder, event *Event) {
	if f.Config.DisplayServiceName && event.Resource.ServiceName != "" {
		builder.WriteString(" service=")
		builder.WriteString(event.Resource.ServiceName)
	}
	if f.Config.DisplayServiceNamespace && event.Resource.ServiceNamespace != "" {
		builder.WriteString(" namespace=")
		builder.WriteString(event.Resource.ServiceNamespace)
	}
	if f.Config.DisplayResource {
		for _, key := range event.Resource.AttributeKeys {
			builder.WriteString(" ")
			builder.WriteString(key)
			builder.WriteString("=")
			builder.WriteString(event.Resource.Attributes[key])
		}
	}
}

func (f *TextFormatter) callerString(event *Event) string {
	switch {
	case f.Config.DisplayFilename && f.Config.DisplayLineNumber:
		return event.Filename + ":" + strconv.Itoa(event.Line)
	case f.Config.DisplayFilename:
		return event.Filename
	case f.Config.DisplayLineNumber:
		return strconv.Itoa(event.Line)
	default:
		return ""
	}
}

func (f *TextFormatter) threadString(event *Event) string {
	switch {
	case f.Config.DisplayThreadName && f.Config.DisplayThreadID:
		return event.ThreadName + "#" + strconv.FormatUint(event.ThreadID, 10)
	case f.Config.DisplayThreadName:
		return event.ThreadName
	case f.Config.DisplayThreadID:
		return strconv.FormatUint(event.ThreadID, 10)
	default:
		return ""
	}
}

func (f *TextFormatter) levelString(level Level) string {
	text := strings.ToUpper(FormatLevel(level))
	if !f.Config.ANSI {
		return text
	}
	switch level {
	case LevelError:
		return aurora.Red(text).String()
	case LevelWarn:
		return aurora.Yellow(text).String()
	case LevelInfo:
		return aurora.Cyan(text).String()
	case LevelDebug:
		return aurora.White(text).String()
	default:
		return aurora.Magenta(text).String()
	}
}

// spanName colors span names with a stable per-name color so one span is
// easy to follow through interleaved output.
func (f *TextFormatter) spanName(name string) string {
	if !f.Config.ANSI {
		return name
	}
	color := spanColors[xxhash.Sum64String(name)%uint64(len(spanColors))]
	return aurora.Colorize(name, color).String()
}

func formatTextValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}
