package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("club_id", "123"),
		attribute.String("member_id", "456"),
		attribute.String("outcome", "attend"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "club_id" && attrs[1].Key != "club_id" {
		t.Fatalf("expected club_id to be retained")
	}
	if attrs[0].Key != "outcome" && attrs[1].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}

func TestMetricsRecordersTolerateNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "classbook"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	ctx := context.Background()
	m.RecordBookingOutcome(ctx, "attend", "online")
	m.RecordCancellation(ctx, "attend", true)
	m.RecordPromotionOffer(ctx, "cancellation")
	m.RecordCreditEntry(ctx, "credit_grant")

	var nilMetrics *Metrics
	nilMetrics.RecordBookingOutcome(ctx, "attend", "online")
}
