package hosted

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/classbook/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		CheckoutURL:   "https://pay.example.com/checkout",
		ReturnURL:     "https://app.example.com/bookings",
		WebhookSecret: "whsec_test",
	})
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func TestNewAdapterRequiresConfig(t *testing.T) {
	_, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{CheckoutURL: "https://pay.example.com"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)

	_, err = NewFactory().NewAdapter(paymentdomain.AdapterConfig{CheckoutURL: "not a url", WebhookSecret: "s"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestStartPaymentBuildsRedirect(t *testing.T) {
	adapter := newTestAdapter(t)

	session, err := adapter.StartPayment(context.Background(), paymentdomain.StartRequest{
		BookingID: snowflake.ID(42),
		Amount:    2500,
		Currency:  "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "hosted", session.Provider)
	assert.Contains(t, session.Reference, referencePrefix)

	redirect, err := url.Parse(session.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "pay.example.com", redirect.Host)
	query := redirect.Query()
	assert.Equal(t, session.Reference, query.Get("reference"))
	assert.Equal(t, "42", query.Get("booking_id"))
	assert.Equal(t, "2500", query.Get("amount"))
	assert.Equal(t, "USD", query.Get("currency"))
	assert.Equal(t, "https://app.example.com/bookings", query.Get("return_url"))
	assert.NotEmpty(t, query.Get("correlation_id"))
}

func TestStartPaymentRejectsZeroAmount(t *testing.T) {
	adapter := newTestAdapter(t)
	_, err := adapter.StartPayment(context.Background(), paymentdomain.StartRequest{BookingID: 1})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)
}

func TestVerifySignature(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"id":"evt_1","type":"checkout.completed","data":{"reference":"chk_1"}}`)

	headers := http.Header{}
	headers.Set(signatureHeader, SignatureHeader("whsec_test", payload, time.Now()))
	require.NoError(t, adapter.Verify(context.Background(), payload, headers))

	headers.Set(signatureHeader, SignatureHeader("wrong", payload, time.Now()))
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)

	headers.Del(signatureHeader)
	assert.ErrorIs(t, adapter.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)
}

func TestParseEvent(t *testing.T) {
	adapter := newTestAdapter(t)
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		kind     string
		wantType string
		wantErr  error
	}{
		{name: "completed", kind: "checkout.completed", wantType: paymentdomain.EventTypeConfirmed},
		{name: "cancelled", kind: "checkout.cancelled", wantType: paymentdomain.EventTypeCancelled},
		{name: "expired", kind: "checkout.expired", wantType: paymentdomain.EventTypeCancelled},
		{name: "failed", kind: "checkout.failed", wantType: paymentdomain.EventTypeFailed},
		{name: "ignored", kind: "checkout.viewed", wantErr: paymentdomain.ErrEventIgnored},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := json.Marshal(map[string]any{
				"id":      "evt_" + tc.name,
				"type":    tc.kind,
				"created": created.Unix(),
				"data": map[string]any{
					"reference": "chk_01",
					"metadata": map[string]any{
						"booking_id":     "77",
						"correlation_id": "corr-1",
					},
				},
			})
			require.NoError(t, err)

			event, err := adapter.Parse(context.Background(), payload)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantType, event.Type)
			assert.Equal(t, snowflake.ID(77), event.BookingID)
			assert.Equal(t, "chk_01", event.Reference)
			assert.Equal(t, "corr-1", event.CorrelationID)
			assert.True(t, event.OccurredAt.Equal(created))
		})
	}
}

func TestParseRejectsMissingBooking(t *testing.T) {
	adapter := newTestAdapter(t)
	_, err := adapter.Parse(context.Background(), []byte(`{"id":"evt","type":"checkout.completed","data":{"reference":"chk"}}`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)

	_, err = adapter.Parse(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}
