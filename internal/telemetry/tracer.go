package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for server core operations.
const (
	// ========================================================================
	// Lifecycle attributes
	// ========================================================================
	AttrTask        = "lifecycle.task"
	AttrStep        = "lifecycle.step"
	AttrStepIndex   = "lifecycle.step_index"
	AttrServerState = "lifecycle.state"
	AttrForced      = "lifecycle.forced"

	// ========================================================================
	// Item attributes
	// ========================================================================
	AttrItemPath   = "item.path"
	AttrItemHandle = "item.handle"
	AttrItemType   = "item.type"
	AttrQuality    = "item.quality"
	AttrItemCount  = "item.count"

	// ========================================================================
	// Condition attributes
	// ========================================================================
	AttrConditionID  = "condition.id"
	AttrSubCondition = "condition.sub_condition"

	// ========================================================================
	// Operator API attributes (OpenTelemetry HTTP conventions)
	// ========================================================================
	AttrHTTPMethod = "http.request.method"
	AttrURLPath    = "url.path"
	AttrHTTPStatus = "http.response.status_code"
)

// Resource attribute keys describing how the address space was configured.
const (
	ResMassItemLoops = "daserver.population.mass_item_loops"
	ResSeed          = "daserver.population.seed"
	ResMaxItems      = "daserver.items.max"
	ResControlItem   = "daserver.control.item"
	ResRefreshPeriod = "daserver.refresh.period"
)

// Span names. Format: <component>.<operation>
const (
	SpanPopulation      = "lifecycle.population"
	SpanPopulationStep  = "lifecycle.population.step"
	SpanShutdown        = "lifecycle.shutdown"
	SpanItemRead        = "items.read"
	SpanItemWrite       = "items.write"
	SpanAcknowledge     = "alarms.acknowledge"
	SpanShutdownRequest = "control.shutdown_request"
	SpanAPIRequest      = "api.request"
)

func Task(name string) attribute.KeyValue {
	return attribute.String(AttrTask, name)
}

func Step(name string) attribute.KeyValue {
	return attribute.String(AttrStep, name)
}

func StepIndex(i int) attribute.KeyValue {
	return attribute.Int(AttrStepIndex, i)
}

// ServerState returns an attribute for the published server state
func ServerState(state string) attribute.KeyValue {
	return attribute.String(AttrServerState, state)
}

// Forced marks a task that had to be abandoned at shutdown
func Forced(forced bool) attribute.KeyValue {
	return attribute.Bool(AttrForced, forced)
}

func ItemPath(path string) attribute.KeyValue {
	return attribute.String(AttrItemPath, path)
}

// ItemHandle returns an attribute for an item handle, rendered in hex
func ItemHandle(h uint64) attribute.KeyValue {
	return attribute.String(AttrItemHandle, fmt.Sprintf("0x%016x", h))
}

func ItemType(t string) attribute.KeyValue {
	return attribute.String(AttrItemType, t)
}

func Quality(q string) attribute.KeyValue {
	return attribute.String(AttrQuality, q)
}

func ItemCount(n int) attribute.KeyValue {
	return attribute.Int(AttrItemCount, n)
}

func ConditionID(id uint32) attribute.KeyValue {
	return attribute.String(AttrConditionID, fmt.Sprintf("0x%x", id))
}

func SubCondition(id uint32) attribute.KeyValue {
	return attribute.String(AttrSubCondition, fmt.Sprintf("0x%x", id))
}

// StartStepSpan starts a span for one population step.
func StartStepSpan(ctx context.Context, index int, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+3)
	allAttrs = append(allAttrs, Task("population"), StepIndex(index), Step(name))
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, SpanPopulationStep, trace.WithAttributes(allAttrs...))
}

// StartItemSpan starts a span for a client item read or write.
func StartItemSpan(ctx context.Context, operation string, handle uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	allAttrs = append(allAttrs, ItemHandle(handle))
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, operation, trace.WithAttributes(allAttrs...))
}

// HTTPRequest returns the method and path attributes of an API request.
func HTTPRequest(method, path string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrURLPath, path),
	}
}

func HTTPStatus(code int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, code)
}
