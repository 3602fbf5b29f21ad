package log

import (
	"io"
	"os"
	"sort"

	"github.com/spanlog/spanlog/option"

	E "github.com/sagernet/sing/common/exceptions"
	"golang.org/x/term"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

const (
	FlavorDefault = "default"
	FlavorCompact = "compact"
	FlavorPretty  = "pretty"
)

const defaultTimestampFormat = "-0700 2006-01-02 15:04:05"

// Interactivity answers whether a sink is attached to an interactive
// terminal. It is injected so tests can simulate both environments without
// a real tty.
type Interactivity interface {
	IsTerminal() bool
}

type writerInteractivity struct {
	writer io.Writer
}

func (w writerInteractivity) IsTerminal() bool {
	file, isFile := w.writer.(*os.File)
	if !isFile {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// WriterInteractivity probes the given writer directly; only *os.File
// destinations can be interactive.
func WriterInteractivity(writer io.Writer) Interactivity {
	return writerInteractivity{writer}
}

// FormatConfig is the fully resolved, immutable formatting configuration of
// one sink. It never changes between events.
type FormatConfig struct {
	Format          string
	Flavor          string
	ANSI            bool
	TimestampFormat string

	DisplayTimestamp        bool
	DisplayLevel            bool
	DisplayFilename         bool
	DisplayLineNumber       bool
	DisplayTarget           bool
	DisplayThreadID         bool
	DisplayThreadName       bool
	DisplayCurrentSpan      bool
	DisplaySpanList         bool
	DisplayResource         bool
	DisplayServiceName      bool
	DisplayServiceNamespace bool
}

// ResolveFormat decides the effective format of one sink, once, before any
// event flows: an explicit tty_format wins on interactive terminals, an
// explicit format wins otherwise, and without configuration an interactive
// sink gets text while a non-interactive one gets JSON.
func ResolveFormat(format string, ttyFormat string, textOptions option.TextFormatOptions, jsonOptions option.JSONFormatOptions, probe Interactivity) (FormatConfig, error) {
	if err := checkFormat(format); err != nil {
		return FormatConfig{}, err
	}
	if err := checkFormat(ttyFormat); err != nil {
		return FormatConfig{}, E.Cause(err, "tty_format")
	}
	interactive := probe.IsTerminal()
	effective := format
	if interactive && ttyFormat != "" {
		effective = ttyFormat
	}
	if effective == "" {
		if interactive {
			effective = FormatText
		} else {
			effective = FormatJSON
		}
	}
	switch effective {
	case FormatText:
		return resolveTextConfig(textOptions)
	case FormatJSON:
		return resolveJSONConfig(jsonOptions), nil
	default:
		return FormatConfig{}, E.New("unknown log format: ", effective)
	}
}

func checkFormat(format string) error {
	switch format {
	case "", FormatText, FormatJSON:
		return nil
	default:
		return E.New("unknown log format: ", format)
	}
}

func resolveTextConfig(options option.TextFormatOptions) (FormatConfig, error) {
	flavor := options.Flavor
	if flavor == "" {
		flavor = FlavorDefault
	}
	switch flavor {
	case FlavorDefault, FlavorCompact, FlavorPretty:
	default:
		return FormatConfig{}, E.New("unknown text flavor: ", options.Flavor)
	}
	config := FormatConfig{
		Format:          FormatText,
		Flavor:          flavor,
		ANSI:            options.ANSIEscapeCodes,
		TimestampFormat: defaultTimestampFormat,
	}
	applyDisplayOptions(&config, options.DisplayOptions, false)
	return config, nil
}

func resolveJSONConfig(options option.JSONFormatOptions) FormatConfig {
	config := FormatConfig{
		Format: FormatJSON,
	}
	applyDisplayOptions(&config, options.DisplayOptions, true)
	return config
}

// applyDisplayOptions fills the toggle set. Timestamp and level default on;
// the span list additionally defaults on for JSON, matching machine
// consumers that want the full chain.
func applyDisplayOptions(config *FormatConfig, options option.DisplayOptions, spanListDefault bool) {
	config.DisplayTimestamp = boolOrDefault(options.DisplayTimestamp, true)
	config.DisplayLevel = boolOrDefault(options.DisplayLevel, true)
	config.DisplayFilename = boolOrDefault(options.DisplayFilename, false)
	config.DisplayLineNumber = boolOrDefault(options.DisplayLineNumber, false)
	config.DisplayTarget = boolOrDefault(options.DisplayTarget, false)
	config.DisplayThreadID = boolOrDefault(options.DisplayThreadID, false)
	config.DisplayThreadName = boolOrDefault(options.DisplayThreadName, false)
	config.DisplayCurrentSpan = boolOrDefault(options.DisplayCurrentSpan, false)
	config.DisplaySpanList = boolOrDefault(options.DisplaySpanList, spanListDefault)
	config.DisplayResource = boolOrDefault(options.DisplayResource, false)
	config.DisplayServiceName = boolOrDefault(options.DisplayServiceName, false)
	config.DisplayServiceNamespace = boolOrDefault(options.DisplayServiceNamespace, false)
}

func boolOrDefault(value *bool, defaultValue bool) bool {
	if value == nil {
		return defaultValue
	}
	return *value
}

func resolveResource(options *option.ResourceOptions) Resource {
	if options == nil {
		return Resource{}
	}
	resource := Resource{
		ServiceName:      options.ServiceName,
		ServiceNamespace: options.ServiceNamespace,
		Attributes:       options.Attributes,
	}
	for key := range options.Attributes {
		resource.AttributeKeys = append(resource.AttributeKeys, key)
	}
	sort.Strings(resource.AttributeKeys)
	return resource
}
