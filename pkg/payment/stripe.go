package payment

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const placeholderKey = "sk_test_your_stripe_secret_key_here"

// StripeGateway is a Gateway backed by Stripe PaymentIntents.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a gateway for secretKey. Empty, placeholder or
// obviously truncated keys yield ErrNotConfigured.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" || key == placeholderKey || len(key) <= 20 {
		return nil, ErrNotConfigured
	}
	api := &client.API{}
	api.Init(key, nil)
	return &StripeGateway{api: api}, nil
}

// CreateIntent creates a PaymentIntent for amountCents.
func (g *StripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(strings.ToLower(currency)),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create payment intent")
	}
	return fromStripe(pi), nil
}

// Retrieve fetches the current state of a PaymentIntent.
func (g *StripeGateway) Retrieve(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, errors.Wrapf(ErrIntentNotFound, "intent %s", id)
		}
		return nil, errors.Wrapf(err, "failed to retrieve payment intent %s", id)
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
	}
}
