package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/classbook/internal/config"
	"github.com/smallbiznis/classbook/internal/payment/adapters"
	"github.com/smallbiznis/classbook/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type GatewayParams struct {
	fx.In

	Config   config.Config
	Registry *adapters.Registry
	Log      *zap.Logger
}

// Gateway routes payment calls to the adapter of the configured provider.
type Gateway struct {
	log             *zap.Logger
	defaultProvider string
	adapters        map[string]domain.PaymentAdapter
}

func NewGateway(p GatewayParams) (*Gateway, error) {
	provider := strings.ToLower(strings.TrimSpace(p.Config.Payment.Provider))
	if provider == "" {
		provider = "manual"
	}
	if !p.Registry.ProviderExists(provider) {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, provider)
	}

	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("payment.gateway")

	cfg := domain.AdapterConfig{
		CheckoutURL:   p.Config.Payment.CheckoutURL,
		ReturnURL:     p.Config.Payment.ReturnURL,
		WebhookSecret: p.Config.Payment.WebhookSecret,
	}

	built := map[string]domain.PaymentAdapter{}
	for _, name := range p.Registry.Providers() {
		adapter, err := p.Registry.NewAdapter(name, cfg)
		if err != nil {
			if name == provider {
				return nil, fmt.Errorf("payment provider %s: %w", name, err)
			}
			log.Debug("payment provider not configured", zap.String("provider", name), zap.Error(err))
			continue
		}
		built[name] = adapter
	}

	return &Gateway{log: log, defaultProvider: provider, adapters: built}, nil
}

// Provider reports the provider new checkouts are started with.
func (g *Gateway) Provider() string {
	return g.defaultProvider
}

func (g *Gateway) Start(ctx context.Context, req domain.StartRequest) (*domain.Session, error) {
	adapter, err := g.adapter(g.defaultProvider)
	if err != nil {
		return nil, err
	}
	session, err := adapter.StartPayment(ctx, req)
	if err != nil {
		return nil, upstream(err)
	}
	return session, nil
}

func (g *Gateway) Cancel(ctx context.Context, provider, reference string) error {
	adapter, err := g.adapter(provider)
	if err != nil {
		return err
	}
	if err := adapter.CancelPayment(ctx, reference); err != nil {
		return upstream(err)
	}
	return nil
}

// ParseCallback verifies and decodes a provider callback.
func (g *Gateway) ParseCallback(ctx context.Context, provider string, payload []byte, headers http.Header) (*domain.Event, error) {
	adapter, err := g.adapter(provider)
	if err != nil {
		return nil, err
	}
	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return nil, err
	}
	return adapter.Parse(ctx, payload)
}

func (g *Gateway) adapter(provider string) (domain.PaymentAdapter, error) {
	if g == nil {
		return nil, domain.ErrProviderNotFound
	}
	adapter, ok := g.adapters[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return adapter, nil
}

func upstream(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidPayload):
		return err
	case errors.Is(err, domain.ErrProviderFailure):
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
}
