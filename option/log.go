package option

import (
	"github.com/sagernet/sing/common/json/badoption"
)

// LogOptions is the top-level configuration for the log pipeline.
type LogOptions struct {
	Enabled   bool              `json:"enabled,omitempty"`
	Level     string            `json:"level,omitempty"`
	Format    string            `json:"format,omitempty"`
	TTYFormat string            `json:"tty_format,omitempty"`
	Output    string            `json:"output,omitempty"`
	Outputs   []LogOutput       `json:"outputs,omitempty"`
	RateLimit *RateLimitOptions `json:"rate_limit,omitempty"`
	Text      TextFormatOptions `json:"text,omitempty"`
	JSON      JSONFormatOptions `json:"json,omitempty"`
	Resource  *ResourceOptions  `json:"resource,omitempty"`
}

// LogOutput configures a single sink in multi-output mode. Unset fields
// inherit the corresponding top-level LogOptions values.
type LogOutput struct {
	Type      string             `json:"type"`
	Path      string             `json:"path,omitempty"`
	Format    string             `json:"format,omitempty"`
	TTYFormat string             `json:"tty_format,omitempty"`
	RateLimit *RateLimitOptions  `json:"rate_limit,omitempty"`
	Text      *TextFormatOptions `json:"text,omitempty"`
	JSON      *JSONFormatOptions `json:"json,omitempty"`
}

// RateLimitOptions configures the per-call-site token bucket. A bucket holds
// Capacity tokens and is fully replenished every Interval; there is no
// continuous refill rate. Capacity 0 is valid and admits nothing.
type RateLimitOptions struct {
	Capacity uint32             `json:"capacity"`
	Interval badoption.Duration `json:"interval"`
}

// DisplayOptions are the per-format field toggles shared by text and JSON
// output. Nil pointers take the documented default (timestamp and level on,
// everything else off, except the JSON span list).
type DisplayOptions struct {
	DisplayTimestamp        *bool `json:"display_timestamp,omitempty"`
	DisplayLevel            *bool `json:"display_level,omitempty"`
	DisplayFilename         *bool `json:"display_filename,omitempty"`
	DisplayLineNumber       *bool `json:"display_line_number,omitempty"`
	DisplayTarget           *bool `json:"display_target,omitempty"`
	DisplayThreadID         *bool `json:"display_thread_id,omitempty"`
	DisplayThreadName       *bool `json:"display_thread_name,omitempty"`
	DisplayCurrentSpan      *bool `json:"display_current_span,omitempty"`
	DisplaySpanList         *bool `json:"display_span_list,omitempty"`
	DisplayResource         *bool `json:"display_resource,omitempty"`
	DisplayServiceName      *bool `json:"display_service_name,omitempty"`
	DisplayServiceNamespace *bool `json:"display_service_namespace,omitempty"`
}

type TextFormatOptions struct {
	DisplayOptions
	Flavor          string `json:"flavor,omitempty"`
	ANSIEscapeCodes bool   `json:"ansi_escape_codes,omitempty"`
}

type JSONFormatOptions struct {
	DisplayOptions
}

// ResourceOptions carries service-identity metadata attached to every event
// independently of any span.
type ResourceOptions struct {
	ServiceName      string            `json:"service_name,omitempty"`
	ServiceNamespace string            `json:"service_namespace,omitempty"`
	Attributes       map[string]string `json:"attributes,omitempty"`
}
