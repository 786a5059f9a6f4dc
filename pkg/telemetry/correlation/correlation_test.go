package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "fixed")

	_, cid := EnsureCorrelationID(ctx)

	assert.Equal(t, "fixed", cid)
}

func TestInjectIntoMetadata(t *testing.T) {
	ctx := ContextWithRemoteSpan(context.Background(), "4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")

	metadata := InjectIntoMetadata(ctx, map[string]string{"booking_ref": "7"})

	assert.Equal(t, "7", metadata["booking_ref"])
	assert.NotEmpty(t, metadata["correlation_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", metadata["trace_id"])
	assert.True(t, trace.SpanContextFromContext(ctx).IsRemote())
}
