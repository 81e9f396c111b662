package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MemoryGateway keeps intents in process. With autoConfirm every new intent
// is immediately succeeded, which suits local development.
type MemoryGateway struct {
	mu          sync.Mutex
	intents     map[string]Intent
	autoConfirm bool
}

// NewMemoryGateway creates an empty MemoryGateway.
func NewMemoryGateway(autoConfirm bool) *MemoryGateway {
	return &MemoryGateway{intents: make(map[string]Intent), autoConfirm: autoConfirm}
}

func (g *MemoryGateway) CreateIntent(_ context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	if amountCents <= 0 {
		return nil, errors.New("amount must be positive")
	}
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		AmountCents:  amountCents,
		Currency:     strings.ToLower(currency),
		Status:       "requires_payment_method",
		Metadata:     make(map[string]string, len(metadata)),
	}
	for k, v := range metadata {
		intent.Metadata[k] = v
	}
	if g.autoConfirm {
		intent.Status = StatusSucceeded
	}

	g.mu.Lock()
	g.intents[id] = intent
	g.mu.Unlock()
	return &intent, nil
}

func (g *MemoryGateway) Retrieve(_ context.Context, id string) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return nil, errors.Wrapf(ErrIntentNotFound, "intent %s", id)
	}
	return &intent, nil
}

// Confirm marks an intent as succeeded, as the card form would.
func (g *MemoryGateway) Confirm(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[id]
	if !ok {
		return errors.Wrapf(ErrIntentNotFound, "intent %s", id)
	}
	intent.Status = StatusSucceeded
	g.intents[id] = intent
	return nil
}
