package log

import (
	"strings"
	"testing"

	"github.com/spanlog/spanlog/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formatText(config FormatConfig, event *Event) string {
	formatter := TextFormatter{Config: config}
	return string(formatter.Format(event))
}

func TestTextMinimalLine(t *testing.T) {
	config := FormatConfig{Format: FormatText, Flavor: FlavorDefault, DisplayLevel: true}
	line := formatText(config, sampleEvent())
	assert.Equal(t, "INFO request started status=200 cached=true client=curl\n", line)
}

func TestTextTimestampAndTarget(t *testing.T) {
	config := FormatConfig{
		Format:           FormatText,
		Flavor:           FlavorDefault,
		TimestampFormat:  defaultTimestampFormat,
		DisplayTimestamp: true,
		DisplayLevel:     true,
		DisplayTarget:    true,
	}
	line := formatText(config, sampleEvent())
	assert.Contains(t, line, "2024-05-01 12:30:00 INFO [router] request started")
}

func TestTextSpanChain(t *testing.T) {
	config := FormatConfig{Format: FormatText, Flavor: FlavorDefault, DisplayLevel: true, DisplaySpanList: true}
	line := formatText(config, sampleEvent())
	assert.Contains(t, line, "a{request_id=r1}>b>c{step=3}: request started")

	config.DisplaySpanList = false
	config.DisplayCurrentSpan = true
	line = formatText(config, sampleEvent())
	assert.Contains(t, line, "c{step=3}: request started")
	assert.NotContains(t, line, "a{")
}

func TestTextSpanAttributeFallback(t *testing.T) {
	config := FormatConfig{Format: FormatText, Flavor: FlavorDefault, DisplayLevel: true, DisplaySpanList: true}
	event := sampleEvent()
	event.Spans = []trace.Snapshot{
		{Name: "batch", Attributes: []trace.Attr{{Key: "ids", Value: []int{1, 2}}}},
	}
	line := formatText(config, event)
	assert.Contains(t, line, "batch{ids=[1 2]}")
}

func TestTextCallerAndThread(t *testing.T) {
	config := FormatConfig{
		Format:            FormatText,
		Flavor:            FlavorDefault,
		DisplayLevel:      true,
		DisplayFilename:   true,
		DisplayLineNumber: true,
		DisplayThreadID:   true,
		DisplayThreadName: true,
	}
	line := formatText(config, sampleEvent())
	assert.Contains(t, line, "server.go:42")
	assert.Contains(t, line, "{worker-1#7}")

	config.DisplayLineNumber = false
	config.DisplayThreadID = false
	line = formatText(config, sampleEvent())
	assert.Contains(t, line, "server.go ")
	assert.NotContains(t, line, ":42")
	assert.Contains(t, line, "{worker-1}")
}

func TestTextServiceSuffix(t *testing.T) {
	config := FormatConfig{
		Format:                  FormatText,
		Flavor:                  FlavorDefault,
		DisplayLevel:            true,
		DisplayServiceName:      true,
		DisplayServiceNamespace: true,
		DisplayResource:         true,
	}
	line := formatText(config, sampleEvent())
	assert.Contains(t, line, "service=gateway")
	assert.Contains(t, line, "namespace=edge")
	assert.Contains(t, line, "region=eu")
}

func TestTextCompactFlavor(t *testing.T) {
	config := FormatConfig{
		Format:           FormatText,
		Flavor:           FlavorCompact,
		DisplayTimestamp: true,
		DisplayLevel:     true,
		DisplaySpanList:  true,
	}
	line := formatText(config, sampleEvent())
	assert.Equal(t, "12:30:00 INFO a>b>c: request started status=200 cached=true client=curl\n", line)
}

func TestTextPrettyFlavor(t *testing.T) {
	config := FormatConfig{
		Format:            FormatText,
		Flavor:            FlavorPretty,
		TimestampFormat:   defaultTimestampFormat,
		DisplayTimestamp:  true,
		DisplayLevel:      true,
		DisplayFilename:   true,
		DisplayLineNumber: true,
		DisplayTarget:     true,
		DisplaySpanList:   true,
		DisplayThreadName: true,
	}
	block := formatText(config, sampleEvent())
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	require.True(t, len(lines) > 5, "pretty flavor is multi-line")
	assert.Contains(t, lines[0], "INFO request started")
	assert.Contains(t, block, "    at server.go:42 in router\n")
	// Spans leaf to root in pretty layout.
	assert.Contains(t, block, "    in c with step=3\n")
	assert.Contains(t, block, "    in a with request_id=r1\n")
	assert.Contains(t, block, "    status = 200\n")
	assert.Contains(t, block, "    thread = worker-1\n")
	assert.Less(t, strings.Index(block, "in c"), strings.Index(block, "in a"))
}

func TestTextDeterministic(t *testing.T) {
	config := FormatConfig{Format: FormatText, Flavor: FlavorDefault, DisplayLevel: true, DisplaySpanList: true}
	first := formatText(config, sampleEvent())
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, formatText(config, sampleEvent()))
	}
}

func TestTextANSIDecoratesWithoutChangingContent(t *testing.T) {
	plain := FormatConfig{Format: FormatText, Flavor: FlavorDefault, DisplayLevel: true, DisplaySpanList: true}
	colored := plain
	colored.ANSI = true

	event := sampleEvent()
	event.Level = LevelError
	plainLine := formatText(plain, event)
	coloredLine := formatText(colored, event)

	assert.Contains(t, coloredLine, "\x1b[")
	assert.Contains(t, coloredLine, "ERROR")
	assert.Equal(t, plainLine, stripANSI(coloredLine))
}

func stripANSI(s string) string {
	var builder strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
