package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_None(t *testing.T) {
	for _, exporter := range []string{"", "none"} {
		p, err := Setup(exporter, nil)
		require.NoError(t, err)
		assert.False(t, p.Enabled())
		assert.NoError(t, p.Shutdown(context.Background()))
	}
}

func TestSetup_Unsupported(t *testing.T) {
	_, err := Setup("jaeger", nil)
	require.Error(t, err)
}

func TestSetup_Stdout(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	p, err := Setup("stdout", &buf)
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := otel.Tracer("test").Start(context.Background(), "registration.sign_up")
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "registration.sign_up")
	assert.Contains(t, buf.String(), ServiceName)
}
