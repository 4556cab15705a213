package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// withRecorder routes spans to an in-memory recorder for the test.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	setTracer(provider.Tracer(instrumentationName), true)
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Config{})
		_ = provider.Shutdown(context.Background())
	})
	return rec
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	_, span := StartSpan(ctx, SpanItemRead)
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(Config{
		ServiceName:    "daserver",
		ServiceVersion: "1.0.0",
		InstanceID:     "sim-a",
		Attributes: map[string]string{
			ResMaxItems:      "5000",
			ResMassItemLoops: "100",
			"site":           "plant-north",
		},
	})

	keys := make([]string, len(attrs))
	for i, a := range attrs {
		keys[i] = string(a.Key)
	}
	assert.Equal(t, []string{
		"service.name",
		"service.version",
		"service.instance.id",
		ResMaxItems,
		ResMassItemLoops,
		"site",
	}, keys)
	assert.Equal(t, "sim-a", attrs[2].Value.AsString())
}

func TestResourceAttributesWithoutInstance(t *testing.T) {
	attrs := resourceAttributes(Config{ServiceName: "daserver", ServiceVersion: "dev"})
	require.Len(t, attrs, 2)
	for _, a := range attrs {
		assert.NotEqual(t, attribute.Key(attrServiceInstance), a.Key)
	}
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(2).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestRecordError(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanItemWrite)
	RecordError(ctx, nil)
	RecordError(ctx, errors.New("not writable"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "not writable", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestSetStatusAndAttributes(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), SpanPopulation)
	SetAttributes(ctx, ServerState("Running"), ItemCount(7280))
	SetStatus(ctx, codes.Ok, "")
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), ServerState("Running"))
	assert.Contains(t, spans[0].Attributes(), ItemCount(7280))
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("Step", func(t *testing.T) {
		attr := Step("areas")
		assert.Equal(t, AttrStep, string(attr.Key))
		assert.Equal(t, "areas", attr.Value.AsString())
	})

	t.Run("StepIndex", func(t *testing.T) {
		attr := StepIndex(4)
		assert.Equal(t, AttrStepIndex, string(attr.Key))
		assert.Equal(t, int64(4), attr.Value.AsInt64())
	})

	t.Run("Forced", func(t *testing.T) {
		attr := Forced(true)
		assert.Equal(t, AttrForced, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("ItemHandle", func(t *testing.T) {
		attr := ItemHandle(0x0000000100000002)
		assert.Equal(t, AttrItemHandle, string(attr.Key))
		assert.Equal(t, "0x0000000100000002", attr.Value.AsString())
	})

	t.Run("ItemType", func(t *testing.T) {
		attr := ItemType("ui2")
		assert.Equal(t, AttrItemType, string(attr.Key))
		assert.Equal(t, "ui2", attr.Value.AsString())
	})

	t.Run("Quality", func(t *testing.T) {
		attr := Quality("Good")
		assert.Equal(t, AttrQuality, string(attr.Key))
		assert.Equal(t, "Good", attr.Value.AsString())
	})

	t.Run("ConditionID", func(t *testing.T) {
		attr := ConditionID(0x804)
		assert.Equal(t, AttrConditionID, string(attr.Key))
		assert.Equal(t, "0x804", attr.Value.AsString())
	})

	t.Run("HTTP", func(t *testing.T) {
		attrs := HTTPRequest("PUT", "/api/v1/items/Commands.RequestShutdown")
		require.Len(t, attrs, 2)
		assert.Equal(t, AttrHTTPMethod, string(attrs[0].Key))
		assert.Equal(t, "/api/v1/items/Commands.RequestShutdown", attrs[1].Value.AsString())
		assert.Equal(t, int64(403), HTTPStatus(403).Value.AsInt64())
	})

	t.Run("SubCondition", func(t *testing.T) {
		attr := SubCondition(0x552)
		assert.Equal(t, AttrSubCondition, string(attr.Key))
		assert.Equal(t, "0x552", attr.Value.AsString())
	})
}

func TestStartStepSpan(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartStepSpan(context.Background(), 9, "mass_items", ItemCount(7280))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanPopulationStep, spans[0].Name())
	attrs := spans[0].Attributes()
	assert.Contains(t, attrs, Task("population"))
	assert.Contains(t, attrs, StepIndex(9))
	assert.Contains(t, attrs, Step("mass_items"))
	assert.Contains(t, attrs, ItemCount(7280))
}

func TestStartItemSpan(t *testing.T) {
	rec := withRecorder(t)

	_, span := StartItemSpan(context.Background(), SpanItemWrite, 0x100000001, ItemPath("Commands.RequestShutdown"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanItemWrite, spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), ItemHandle(0x100000001))
	assert.Contains(t, spans[0].Attributes(), ItemPath("Commands.RequestShutdown"))
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileType(t *testing.T) {
	for _, name := range []string{"cpu", "alloc_space", "inuse_space", "goroutines", "mutex_count", "block_duration"} {
		_, err := parseProfileType(name)
		assert.NoError(t, err, name)
	}
	_, err := parseProfileType("wall")
	assert.Error(t, err)
}
