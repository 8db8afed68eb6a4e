package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/agentcouncil/config"
)

// keepGlobals 测试结束后恢复全局 provider
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, mp, prop := otel.GetTracerProvider(), otel.GetMeterProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(prop)
	})
}

func shutdownQuickly(t *testing.T, p *Providers) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
}

func TestInit_Disabled(t *testing.T) {
	keepGlobals(t)

	p, err := Init(config.TelemetryConfig{}, "v1.0.0", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Empty(t, p.InstanceID())
	assert.NoError(t, p.Shutdown(context.Background()))

	// 禁用时 span 不被采样
	_, span := Tracer().Start(context.Background(), "workflow.run")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestInit_Enabled(t *testing.T) {
	keepGlobals(t)

	p, err := Init(config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentcouncil-test",
		SampleRate:   1,
	}, "v1.2.3", zaptest.NewLogger(t))
	require.NoError(t, err)
	shutdownQuickly(t, p)

	assert.True(t, p.Enabled())
	assert.NotEmpty(t, p.InstanceID())

	_, isSDKTracer := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	_, isSDKMeter := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, isSDKTracer)
	assert.True(t, isSDKMeter)
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())

	_, span := Tracer().Start(context.Background(), "council.turn")
	defer span.End()
	assert.True(t, span.SpanContext().IsSampled())
}

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), "agentcouncil", "", "inst-1")
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "agentcouncil", attrs[string(semconv.ServiceNameKey)])
	assert.Equal(t, "dev", attrs[string(semconv.ServiceVersionKey)])
	assert.Equal(t, "inst-1", attrs[string(semconv.ServiceInstanceIDKey)])
}

func TestProviders_NilSafe(t *testing.T) {
	var p *Providers
	assert.False(t, p.Enabled())
	assert.Empty(t, p.InstanceID())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_NilLogger(t *testing.T) {
	keepGlobals(t)
	p, err := Init(config.TelemetryConfig{}, "", nil)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}
