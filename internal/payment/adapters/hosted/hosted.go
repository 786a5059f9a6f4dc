package hosted

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	paymentdomain "github.com/smallbiznis/classbook/internal/payment/domain"
	"github.com/smallbiznis/classbook/pkg/telemetry/correlation"
)

const (
	providerName    = "hosted"
	signatureHeader = "X-Checkout-Signature"
	referencePrefix = "chk_"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret := strings.TrimSpace(cfg.WebhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	checkout, err := url.Parse(strings.TrimSpace(cfg.CheckoutURL))
	if err != nil || checkout.Scheme == "" || checkout.Host == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	return &Adapter{
		checkoutURL:   checkout,
		returnURL:     strings.TrimSpace(cfg.ReturnURL),
		webhookSecret: secret,
		now:           time.Now,
	}, nil
}

// Adapter redirects members to an externally hosted checkout page and
// accepts HMAC-signed callbacks for the outcome.
type Adapter struct {
	checkoutURL   *url.URL
	returnURL     string
	webhookSecret string
	now           func() time.Time
}

func (a *Adapter) Provider() string {
	return providerName
}

func (a *Adapter) StartPayment(ctx context.Context, req paymentdomain.StartRequest) (*paymentdomain.Session, error) {
	if req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if req.BookingID == 0 {
		return nil, paymentdomain.ErrInvalidPayload
	}

	reference := referencePrefix + ulid.Make().String()
	metadata := correlation.InjectIntoMetadata(ctx, copyMetadata(req.Metadata))

	target := *a.checkoutURL
	query := target.Query()
	query.Set("reference", reference)
	query.Set("booking_id", req.BookingID.String())
	query.Set("amount", strconv.FormatInt(req.Amount, 10))
	query.Set("currency", strings.ToUpper(strings.TrimSpace(req.Currency)))
	if desc := strings.TrimSpace(req.Description); desc != "" {
		query.Set("description", desc)
	}
	if a.returnURL != "" {
		query.Set("return_url", a.returnURL)
	}
	if cid := metadata["correlation_id"]; cid != "" {
		query.Set("correlation_id", cid)
	}
	target.RawQuery = query.Encode()

	return &paymentdomain.Session{
		Provider:    providerName,
		Reference:   reference,
		RedirectURL: target.String(),
	}, nil
}

// CancelPayment is a no-op: hosted sessions lapse on their own and a late
// confirmation for a cancelled booking is ignored by the caller.
func (a *Adapter) CancelPayment(ctx context.Context, reference string) error {
	if strings.TrimSpace(reference) == "" {
		return paymentdomain.ErrInvalidPayload
	}
	return nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get(signatureHeader))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	expected := Sign(a.webhookSecret, timestamp, payload)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.Event, error) {
	var event checkoutEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Data.Reference) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var eventType string
	switch strings.TrimSpace(event.Type) {
	case "checkout.completed":
		eventType = paymentdomain.EventTypeConfirmed
	case "checkout.cancelled", "checkout.expired":
		eventType = paymentdomain.EventTypeCancelled
	case "checkout.failed":
		eventType = paymentdomain.EventTypeFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	bookingID, err := snowflake.ParseString(readMetadataValue(event.Data.Metadata, "booking_id"))
	if err != nil || bookingID == 0 {
		return nil, paymentdomain.ErrInvalidEvent
	}

	occurredAt := a.now().UTC()
	if event.Created > 0 {
		occurredAt = time.Unix(event.Created, 0).UTC()
	}

	return &paymentdomain.Event{
		Provider:      providerName,
		Reference:     strings.TrimSpace(event.Data.Reference),
		Type:          eventType,
		BookingID:     bookingID,
		CorrelationID: readMetadataValue(event.Data.Metadata, "correlation_id"),
		OccurredAt:    occurredAt,
	}, nil
}

// Sign returns the hex HMAC-SHA256 of "{timestamp}.{payload}".
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%s.%s", timestamp, string(payload))))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds the header value a checkout page sends with its callback.
func SignatureHeader(secret string, payload []byte, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, Sign(secret, timestamp, payload))
}

type checkoutEvent struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Created int64             `json:"created"`
	Data    checkoutEventData `json:"data"`
}

type checkoutEventData struct {
	Reference string         `json:"reference"`
	Metadata  map[string]any `json:"metadata"`
}

func parseSignature(header string) (string, []string, error) {
	var timestamp string
	signatures := []string{}
	for _, part := range strings.Split(header, ",") {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	}
	return ""
}
