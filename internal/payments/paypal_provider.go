package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/plutov/paypal/v4"

	"github.com/create-my-art/api/internal/domain"
)

// paypalOrderAPI is the slice of the PayPal SDK the provider relies on,
// extracted so tests can stub it.
type paypalOrderAPI interface {
	CreateOrder(ctx context.Context, intent string, purchaseUnits []paypal.PurchaseUnitRequest, paymentSource *paypal.PaymentSource, appContext *paypal.ApplicationContext) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, captureOrderRequest paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
}

// PayPalProviderConfig configures the PayPal order provider.
type PayPalProviderConfig struct {
	ClientID string
	Secret   string
	// Live selects the production API base; the default is sandbox.
	Live   bool
	Logger Logger
	// Clock is used for event timestamps. Defaults to time.Now.
	Clock func() time.Time
	// Client overrides the SDK client, for tests.
	Client paypalOrderAPI
}

// PayPalProvider drives the PayPal Orders v2 API. Both the paypal and the
// card payment methods resolve here; PayPal renders the card form on its own
// surface.
type PayPalProvider struct {
	client paypalOrderAPI
	logger Logger
	clock  func() time.Time
}

// NewPayPalProvider constructs the provider. A missing client ID is a
// construction error so the caller can surface payments-unavailable instead
// of failing at the first checkout.
func NewPayPalProvider(cfg PayPalProviderConfig) (*PayPalProvider, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	client := cfg.Client
	if client == nil {
		if cfg.ClientID == "" {
			return nil, errors.New("paypal provider: client id is required")
		}
		if cfg.Secret == "" {
			return nil, errors.New("paypal provider: secret is required")
		}
		base := paypal.APIBaseSandBox
		if cfg.Live {
			base = paypal.APIBaseLive
		}
		sdk, err := paypal.NewClient(cfg.ClientID, cfg.Secret, base)
		if err != nil {
			return nil, fmt.Errorf("paypal provider: build client: %w", err)
		}
		client = sdk
	}

	return &PayPalProvider{
		client: client,
		logger: cfg.Logger,
		clock:  clock,
	}, nil
}

// Name implements Provider.
func (p *PayPalProvider) Name() string { return "paypal" }

// CreateOrder opens a CAPTURE-intent order mirroring the cart lines. Amounts
// cross the wire as decimal euro strings.
func (p *PayPalProvider) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	items := make([]paypal.Item, 0, len(req.Lines))
	for _, line := range req.Lines {
		name := line.Name
		if name == "" {
			name = "KI-generiertes Poster"
		}
		items = append(items, paypal.Item{
			Name: name,
			SKU:  line.SKU,
			UnitAmount: &paypal.Money{
				Currency: req.Currency,
				Value:    domain.FormatAmount(line.UnitCents),
			},
			Quantity: strconv.Itoa(line.Quantity),
			Category: paypal.ItemCategoryPhysicalGood,
		})
	}

	units := []paypal.PurchaseUnitRequest{{
		Amount: &paypal.PurchaseUnitAmount{
			Currency: req.Currency,
			Value:    domain.FormatAmount(req.TotalCents),
			Breakdown: &paypal.PurchaseUnitAmountBreakdown{
				ItemTotal: &paypal.Money{
					Currency: req.Currency,
					Value:    domain.FormatAmount(req.TotalCents),
				},
			},
		},
		Items: items,
	}}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		p.log(ctx, "paypal.create_order.failed", map[string]any{"error": err.Error()})
		return "", fmt.Errorf("paypal provider: create order: %w", err)
	}

	p.log(ctx, "paypal.create_order.succeeded", map[string]any{
		"order_id": order.ID,
		"amount":   domain.FormatAmount(req.TotalCents),
	})
	return order.ID, nil
}

// Capture settles an approved order. A capture error caused by the payer
// closing the approval window is classified as a cancellation, not a failure.
func (p *PayPalProvider) Capture(ctx context.Context, orderID string) (domain.PaymentResult, error) {
	if orderID == "" {
		return domain.FailedResult(errors.New("paypal provider: order id is required")), nil
	}

	resp, err := p.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
	if err != nil {
		if isWindowClosed(err) {
			p.log(ctx, "paypal.capture.window_closed", map[string]any{"order_id": orderID})
			return domain.CancelledResult(domain.CancelReasonWindowClosed), nil
		}
		p.log(ctx, "paypal.capture.failed", map[string]any{"order_id": orderID, "error": err.Error()})
		return domain.FailedResult(fmt.Errorf("paypal provider: capture order: %w", err)), nil
	}

	captureID, amountCents := extractCapture(resp)
	payerEmail, payerName := extractPayer(resp)

	p.log(ctx, "paypal.capture.succeeded", map[string]any{
		"order_id":   resp.ID,
		"capture_id": captureID,
	})
	return domain.SuccessResult(resp.ID, captureID, payerEmail, payerName, amountCents, rawDetails(resp)), nil
}

func (p *PayPalProvider) log(ctx context.Context, event string, fields map[string]any) {
	if p.logger == nil {
		return
	}
	if fields == nil {
		fields = map[string]any{}
	}
	fields["at"] = p.clock().UTC().Format(time.RFC3339)
	p.logger(ctx, event, fields)
}

func extractCapture(resp *paypal.CaptureOrderResponse) (string, int64) {
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, capture := range unit.Payments.Captures {
			return capture.ID, moneyCents(capture.Amount)
		}
	}
	return "", 0
}

func extractPayer(resp *paypal.CaptureOrderResponse) (email string, name string) {
	if resp.Payer == nil {
		return "", ""
	}
	email = resp.Payer.EmailAddress
	if resp.Payer.Name != nil {
		name = resp.Payer.Name.GivenName
		if resp.Payer.Name.Surname != "" {
			if name != "" {
				name += " "
			}
			name += resp.Payer.Name.Surname
		}
	}
	return email, name
}

func moneyCents(m *paypal.PurchaseUnitAmount) int64 {
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m.Value, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(value * 100))
}

// rawDetails keeps the full capture response on the order document for
// support lookups, as a plain map.
func rawDetails(resp *paypal.CaptureOrderResponse) map[string]any {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	return raw
}
