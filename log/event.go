package log

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spanlog/spanlog/trace"

	"github.com/cespare/xxhash/v2"
)

// Field is one structured attribute on an event. Field order is the order
// the caller passed them in and is preserved through both output formats.
type Field struct {
	Key   string
	Value any
}

// Event is one occurrence of a log statement, fully resolved at raise time.
// It is immutable once built and consumed exactly once by the pipeline.
type Event struct {
	CallSite   uint64
	Level      Level
	Target     string
	Message    string
	Fields     []Field
	Timestamp  time.Time
	ThreadID   uint64
	ThreadName string
	Filename   string
	Line       int
	Spans      []trace.Snapshot
	Resource   Resource
}

// CurrentSpan returns the snapshot of the innermost span active when the
// event was raised, or nil.
func (e *Event) CurrentSpan() *trace.Snapshot {
	if len(e.Spans) == 0 {
		return nil
	}
	return &e.Spans[len(e.Spans)-1]
}

// Resource is the service-identity metadata shared by every event a factory
// emits. AttributeKeys is kept sorted for deterministic output.
type Resource struct {
	ServiceName      string
	ServiceNamespace string
	Attributes       map[string]string
	AttributeKeys    []string
}

// IsEmpty reports whether the resource carries no metadata at all.
func (r Resource) IsEmpty() bool {
	return r.ServiceName == "" && r.ServiceNamespace == "" && len(r.Attributes) == 0
}

// callSiteID derives the stable rate-limiter key for a log statement from
// its source location and message template. Attribute values never feed the
// key, so every execution of the same statement maps to one bucket.
func callSiteID(file string, line int, template string) uint64 {
	digest := xxhash.New()
	digest.WriteString(file)
	digest.WriteString(":")
	digest.WriteString(strconv.Itoa(line))
	digest.WriteString("#")
	digest.WriteString(template)
	return digest.Sum64()
}

// coerceValue maps attribute values onto the scalar set the formatters
// accept. Non-scalar values are stringified rather than rejected so that an
// event is never dropped because of attribute shape.
func coerceValue(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return v
	case float32:
		return float64(v)
	case float64:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(value)
	}
}

// coerceSnapshots applies the same scalar coercion to span attributes, so
// the formatters only ever see scalar values.
func coerceSnapshots(snapshots []trace.Snapshot) []trace.Snapshot {
	for _, snapshot := range snapshots {
		for i := range snapshot.Attributes {
			snapshot.Attributes[i].Value = coerceValue(snapshot.Attributes[i].Value)
		}
	}
	return snapshots
}

func coerceFields(fields []Field) []Field {
	if len(fields) == 0 {
		return nil
	}
	coerced := make([]Field, len(fields))
	for i, field := range fields {
		coerced[i] = Field{Key: field.Key, Value: coerceValue(field.Value)}
	}
	return coerced
}

// goroutineID parses the current goroutine id from the stack header. There
// is no runtime API for this; the header format has been stable since Go 1.4.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := strings.Fields(string(buf[:n]))
	if len(header) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(header[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
