package log

import (
	"time"

	"github.com/spanlog/spanlog/trace"

	"github.com/sagernet/sing/common/json"
	"github.com/sagernet/sing/common/json/badjson"
)

// JSONFormatter renders one event as one self-contained JSON object per
// line. Keys gated by a disabled toggle are entirely absent, never null, and
// attribute insertion order is preserved via ordered objects.
type JSONFormatter struct {
	Config FormatConfig
}

func (f *JSONFormatter) Format(event *Event) ([]byte, error) {
	var document badjson.JSONObject
	if f.Config.DisplayTimestamp {
		document.Put("timestamp", event.Timestamp.UTC().Format(time.RFC3339Nano))
	}
	if f.Config.DisplayLevel {
		document.Put("level", FormatLevel(event.Level))
	}
	document.Put("fields", fieldsObject(event))
	if f.Config.DisplayTarget {
		document.Put("target", event.Target)
	}
	if f.Config.DisplayFilename {
		document.Put("filename", event.Filename)
	}
	if f.Config.DisplayLineNumber {
		document.Put("line_number", event.Line)
	}
	if f.Config.DisplayCurrentSpan {
		if span := event.CurrentSpan(); span != nil {
			document.Put("span", spanObject(*span))
		}
	}
	if f.Config.DisplaySpanList && len(event.Spans) > 0 {
		spans := make([]*badjson.JSONObject, len(event.Spans))
		for i, span := range event.Spans {
			spans[i] = spanObject(span)
		}
		document.Put("spans", spans)
	}
	if f.Config.DisplayThreadName {
		document.Put("threadName", event.ThreadName)
	}
	if f.Config.DisplayThreadID {
		document.Put("threadId", event.ThreadID)
	}
	if f.Config.DisplayResource && len(event.Resource.Attributes) > 0 {
		var resource badjson.JSONObject
		for _, key := range event.Resource.AttributeKeys {
			resource.Put(key, event.Resource.Attributes[key])
		}
		document.Put("resource", &resource)
	}
	// Empty service identity values are elided even when the toggle is on,
	// like every other empty resource field.
	if f.Config.DisplayServiceName && event.Resource.ServiceName != "" {
		document.Put("serviceName", event.Resource.ServiceName)
	}
	if f.Config.DisplayServiceNamespace && event.Resource.ServiceNamespace != "" {
		document.Put("serviceNamespace", event.Resource.ServiceNamespace)
	}
	content, err := json.Marshal(&document)
	if err != nil {
		return nil, err
	}
	return append(content, '\n'), nil
}

// fieldsObject nests the message alongside the event attributes, message
// first, in insertion order.
func fieldsObject(event *Event) *badjson.JSONObject {
	var fields badjson.JSONObject
	fields.Put("message", event.Message)
	for _, field := range event.Fields {
		fields.Put(field.Key, field.Value)
	}
	return &fields
}

func spanObject(span trace.Snapshot) *badjson.JSONObject {
	var object badjson.JSONObject
	object.Put("name", span.Name)
	for _, attr := range span.Attributes {
		object.Put(attr.Key, attr.Value)
	}
	return &object
}
