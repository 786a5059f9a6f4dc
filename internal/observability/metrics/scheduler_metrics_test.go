package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/classbook/internal/authorization"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "forbidden",
			err:  authorization.ErrForbidden,
			want: SchedulerJobReasonForbidden,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "classbook",
		Environment: "test",
	})

	metrics.AddBatchProcessed("expire_offers", "bookings", 3)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("expire_offers", "bookings"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestPromoterMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "classbook", Environment: "test"})

	metrics.SetPromoterActive(2)
	metrics.IncPromoterTick(PromoterTickOffered)
	metrics.IncPromoterTick(PromoterTickOffered)

	if got := testutil.ToFloat64(metrics.promoterActive); got != 2 {
		t.Fatalf("expected 2 active promoters, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.promoterTicks.WithLabelValues(PromoterTickOffered)); got != 2 {
		t.Fatalf("expected 2 offered ticks, got %v", got)
	}
}

func TestRetryableClassification(t *testing.T) {
	if !IsSchedulerErrorRetryable(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("expected pg error to be retryable")
	}
	if IsSchedulerErrorRetryable(errors.New("boom")) {
		t.Fatalf("expected plain error to not be retryable")
	}
	if got := ClassifySchedulerErrorType(authorization.ErrForbidden); got != SchedulerErrorTypeAuthorization {
		t.Fatalf("expected authorization type, got %q", got)
	}
}
