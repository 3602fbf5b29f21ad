package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spanlog/spanlog/option"
	"github.com/spanlog/spanlog/trace"

	"github.com/sagernet/sing/common/json/badoption"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(value bool) *bool {
	return &value
}

func newTestFactory(t *testing.T, options option.LogOptions, writer *bytes.Buffer, observable bool) ObservableFactory {
	t.Helper()
	options.Enabled = true
	factory, err := New(Options{
		Context:       context.Background(),
		Options:       options,
		Observable:    observable,
		DefaultWriter: writer,
		Interactivity: fakeInteractivity(false),
	})
	require.NoError(t, err)
	require.NoError(t, factory.Start())
	t.Cleanup(func() {
		factory.Close()
	})
	return factory
}

func parseLines(t *testing.T, buffer *bytes.Buffer) []map[string]any {
	t.Helper()
	var documents []map[string]any
	for _, line := range strings.Split(strings.TrimRight(buffer.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var document map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &document), "line: %s", line)
		documents = append(documents, document)
	}
	return documents
}

func TestPipelineEmitsJSONWithSpans(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{
		JSON: option.JSONFormatOptions{
			DisplayOptions: option.DisplayOptions{
				DisplayCurrentSpan: boolPtr(true),
				DisplayTarget:      boolPtr(true),
			},
		},
	}, &buffer, false)

	logger := factory.NewLogger("pipeline")
	ctx, outer := trace.Begin(context.Background(), "request", trace.Attr{Key: "method", Value: "GET"})
	ctx, inner := trace.Begin(ctx, "resolve", trace.Attr{Key: "depth", Value: 2})
	logger.InfoContext(ctx, "resolved", Field{Key: "count", Value: 3})
	inner.End()
	outer.End()

	documents := parseLines(t, &buffer)
	require.Len(t, documents, 1)
	document := documents[0]
	assert.Equal(t, "info", document["level"])
	assert.Equal(t, "pipeline", document["target"])
	assert.Equal(t, float64(3), document["fields"].(map[string]any)["count"])

	spans := document["spans"].([]any)
	require.Len(t, spans, 2)
	assert.Equal(t, "request", spans[0].(map[string]any)["name"])
	assert.Equal(t, "resolve", spans[1].(map[string]any)["name"])
	assert.Equal(t, "resolve", document["span"].(map[string]any)["name"])
}

func TestPipelineLevelGate(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{Level: "info"}, &buffer, false)

	logger := factory.Logger()
	logger.Debug("hidden")
	logger.Trace("hidden too")
	logger.Info("visible")

	documents := parseLines(t, &buffer)
	require.Len(t, documents, 1)
	assert.Equal(t, "visible", documents[0]["fields"].(map[string]any)["message"])
}

func TestPipelineOverrideLevel(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{Level: "info"}, &buffer, false)

	ctx := ContextWithOverrideLevel(context.Background(), LevelError)
	factory.Logger().DebugContext(ctx, "promoted")

	documents := parseLines(t, &buffer)
	require.Len(t, documents, 1)
	assert.Equal(t, "error", documents[0]["level"])
}

func TestPipelineRateLimitsPerCallSite(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{
		RateLimit: &option.RateLimitOptions{
			Capacity: 1,
			Interval: badoption.Duration(time.Minute),
		},
	}, &buffer, false)

	logger := factory.Logger()
	for i := 0; i < 5; i++ {
		logger.Info("repeated statement", Field{Key: "attempt", Value: i})
	}
	// A different statement owns a different bucket.
	logger.Info("another statement")

	documents := parseLines(t, &buffer)
	require.Len(t, documents, 2)
	assert.Equal(t, "repeated statement", documents[0]["fields"].(map[string]any)["message"])
	assert.Equal(t, float64(0), documents[0]["fields"].(map[string]any)["attempt"])
	assert.Equal(t, "another statement", documents[1]["fields"].(map[string]any)["message"])
}

func TestObservableBypassesRateLimiter(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{
		RateLimit: &option.RateLimitOptions{
			Capacity: 1,
			Interval: badoption.Duration(time.Minute),
		},
	}, &buffer, true)

	subscription, _, err := factory.Subscribe()
	require.NoError(t, err)
	defer factory.UnSubscribe(subscription)

	logger := factory.Logger()
	for i := 0; i < 3; i++ {
		logger.Warn("burst")
	}

	// The sink saw one event; subscribers see all three.
	require.Len(t, parseLines(t, &buffer), 1)
	for i := 0; i < 3; i++ {
		select {
		case event := <-subscription:
			assert.Equal(t, "burst", event.Message)
		case <-time.After(time.Second):
			t.Fatal("missing observable event")
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write(content []byte) (int, error) {
	return 0, errors.New("sink is broken")
}

func TestWriteFailureReportedOnce(t *testing.T) {
	var (
		mu      sync.Mutex
		reports []error
	)
	factory, err := New(Options{
		Options:       option.LogOptions{Enabled: true},
		DefaultWriter: failingWriter{},
		Interactivity: fakeInteractivity(false),
		ErrorHandler: func(reportErr error) {
			mu.Lock()
			reports = append(reports, reportErr)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	logger := factory.Logger()
	logger.Info("first")
	logger.Info("second")
	logger.Info("third")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reports, 1)
	assert.ErrorContains(t, reports[0], "sink is broken")
}

func TestDisabledFactoryIsNOP(t *testing.T) {
	factory, err := New(Options{Options: option.LogOptions{Enabled: false}})
	require.NoError(t, err)
	require.NoError(t, factory.Start())
	factory.Logger().Info("dropped")
	factory.NewLogger("x").Error("dropped")
	_, _, err = factory.Subscribe()
	assert.ErrorIs(t, err, ErrNotInitialized)
	require.NoError(t, factory.Close())
}

func TestSubscribeWithoutObservable(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{}, &buffer, false)
	_, _, err := factory.Subscribe()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	factory, err := New(Options{
		Options: option.LogOptions{
			Enabled: true,
			Outputs: []option.LogOutput{
				{Type: "file", Path: path, Format: "json"},
			},
		},
	})
	require.NoError(t, err)
	require.NoError(t, factory.Start())

	factory.Logger().Info("persisted", Field{Key: "ok", Value: true})
	require.NoError(t, factory.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	var document map[string]any
	require.NoError(t, json.Unmarshal(content, &document))
	assert.Equal(t, "persisted", document["fields"].(map[string]any)["message"])
}

func TestFileOutputDefaultsToJSON(t *testing.T) {
	// A file is never interactive, so the unset format resolves to JSON.
	path := filepath.Join(t.TempDir(), "service.log")
	factory, err := New(Options{
		Options: option.LogOptions{
			Enabled: true,
			Outputs: []option.LogOutput{{Type: "file", Path: path}},
		},
		Interactivity: fakeInteractivity(true),
	})
	require.NoError(t, err)
	require.NoError(t, factory.Start())
	factory.Logger().Info("hello")
	require.NoError(t, factory.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(bytes.TrimRight(content, "\n")))
}

func TestThreadNameFromContext(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{
		JSON: option.JSONFormatOptions{
			DisplayOptions: option.DisplayOptions{
				DisplayThreadName: boolPtr(true),
				DisplayThreadID:   boolPtr(true),
			},
		},
	}, &buffer, false)

	ctx := ContextWithThreadName(context.Background(), "resolver-3")
	factory.Logger().InfoContext(ctx, "named")

	documents := parseLines(t, &buffer)
	require.Len(t, documents, 1)
	assert.Equal(t, "resolver-3", documents[0]["threadName"])
	assert.Greater(t, documents[0]["threadId"], float64(0))
}

func TestNonScalarAttributesCoerced(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{}, &buffer, false)

	factory.Logger().Info("shapes",
		Field{Key: "list", Value: []int{1, 2, 3}},
		Field{Key: "err", Value: errors.New("boom")},
		Field{Key: "wait", Value: 250 * time.Millisecond},
		Field{Key: "pair", Value: map[string]int{"a": 1}},
	)

	documents := parseLines(t, &buffer)
	require.Len(t, documents, 1)
	fields := documents[0]["fields"].(map[string]any)
	_, isString := fields["list"].(string)
	assert.True(t, isString, "non-scalar values are stringified, never dropped")
	assert.Equal(t, "boom", fields["err"])
	assert.Equal(t, "250ms", fields["wait"])
	assert.Equal(t, "map[a:1]", fields["pair"])
}

func TestSpanAttributesCoerced(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{}, &buffer, false)

	ctx, span := trace.Begin(context.Background(), "load", trace.Attr{Key: "ids", Value: []int{1, 2}})
	factory.Logger().InfoContext(ctx, "loaded")
	span.End()

	documents := parseLines(t, &buffer)
	require.Len(t, documents, 1)
	spans := documents[0]["spans"].([]any)
	require.Len(t, spans, 1)
	assert.Equal(t, "[1 2]", spans[0].(map[string]any)["ids"])
}

func TestConfigurationErrors(t *testing.T) {
	cases := []option.LogOptions{
		{Enabled: true, Level: "loud"},
		{Enabled: true, Format: "xml"},
		{Enabled: true, TTYFormat: "yaml"},
		{Enabled: true, Format: "text", Text: option.TextFormatOptions{Flavor: "fancy"}},
		{Enabled: true, RateLimit: &option.RateLimitOptions{Capacity: 1}},
		{Enabled: true, Outputs: []option.LogOutput{{Type: "socket"}}},
		{Enabled: true, Outputs: []option.LogOutput{{Type: "file"}}},
	}
	for _, logOptions := range cases {
		_, err := New(Options{
			Options:       logOptions,
			DefaultWriter: &bytes.Buffer{},
			Interactivity: fakeInteractivity(false),
		})
		assert.Error(t, err)
	}
}

func TestConcurrentFlows(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{}, &buffer, false)
	logger := factory.Logger()

	var group sync.WaitGroup
	for i := 0; i < 8; i++ {
		group.Add(1)
		go func(flow int) {
			defer group.Done()
			ctx, span := trace.Begin(context.Background(), "flow", trace.Attr{Key: "id", Value: flow})
			for j := 0; j < 25; j++ {
				logger.InfoContext(ctx, "tick", Field{Key: "j", Value: j})
			}
			span.End()
		}(i)
	}
	group.Wait()

	documents := parseLines(t, &buffer)
	assert.Len(t, documents, 200, "every document parses despite concurrent writers")
}

func TestSetLevelDuringEmission(t *testing.T) {
	var buffer bytes.Buffer
	factory := newTestFactory(t, option.LogOptions{}, &buffer, false)
	logger := factory.Logger()

	var group sync.WaitGroup
	group.Add(2)
	go func() {
		defer group.Done()
		for i := 0; i < 200; i++ {
			logger.Info("tick")
		}
	}()
	go func() {
		defer group.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				factory.SetLevel(LevelWarn)
			} else {
				factory.SetLevel(LevelTrace)
			}
		}
	}()
	group.Wait()

	assert.Equal(t, LevelTrace, factory.Level())
	for _, document := range parseLines(t, &buffer) {
		assert.Equal(t, "tick", document["fields"].(map[string]any)["message"])
	}
}
