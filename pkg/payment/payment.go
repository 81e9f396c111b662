// Package payment talks to the card payment provider.
package payment

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured is returned when no usable provider credentials were supplied.
	ErrNotConfigured = errors.New("payment gateway is not configured")
	// ErrIntentNotFound is returned when the provider does not know the intent id.
	ErrIntentNotFound = errors.New("payment intent not found")
)

const (
	// StatusSucceeded is the provider status of a captured payment.
	StatusSucceeded = "succeeded"
	// MetadataUserID names the intent metadata key holding the paying user's id.
	MetadataUserID = "userId"
)

// Intent is a provider-side payment handle.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
	Metadata     map[string]string
}

// Paid reports whether the intent has been captured.
func (i *Intent) Paid() bool {
	return i != nil && i.Status == StatusSucceeded
}

// Covers reports whether the intent is paid and its amount is at least total.
func (i *Intent) Covers(total decimal.Decimal) bool {
	return i.Paid() && i.AmountCents >= ToMinorUnits(total)
}

// OwnedBy reports whether the intent was created for userID.
func (i *Intent) OwnedBy(userID string) bool {
	return i != nil && userID != "" && i.Metadata[MetadataUserID] == userID
}

// Amount converts the intent amount back to major currency units.
func (i *Intent) Amount() decimal.Decimal {
	return decimal.New(i.AmountCents, -2)
}

// Gateway creates and looks up payment intents.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error)
	Retrieve(ctx context.Context, id string) (*Intent, error)
}

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
