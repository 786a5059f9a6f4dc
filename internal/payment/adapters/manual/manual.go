package manual

import (
	"context"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	paymentdomain "github.com/smallbiznis/classbook/internal/payment/domain"
)

const providerName = "manual"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	return &Adapter{}, nil
}

// Adapter records a reference for payments settled outside the platform.
// It never redirects and accepts no callbacks.
type Adapter struct{}

func (a *Adapter) Provider() string {
	return providerName
}

func (a *Adapter) StartPayment(ctx context.Context, req paymentdomain.StartRequest) (*paymentdomain.Session, error) {
	if req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	return &paymentdomain.Session{
		Provider:  providerName,
		Reference: "man_" + ulid.Make().String(),
	}, nil
}

func (a *Adapter) CancelPayment(ctx context.Context, reference string) error {
	if strings.TrimSpace(reference) == "" {
		return paymentdomain.ErrInvalidPayload
	}
	return nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.Event, error) {
	return nil, paymentdomain.ErrEventIgnored
}
