package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/v1/bookings/:ref"),
		attribute.String("email", "member@example.com"),
		attribute.String("Signature", "abc"),
		attribute.String("long", strings.Repeat("x", 400)),
	)

	assert.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
	assert.Len(t, attrs[1].Value.AsString(), maxAttributeLength)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New("  boom  ")), "boom")
	assert.Len(t, SafeError(errors.New(strings.Repeat("y", 500))).Error(), maxAttributeLength)
}
