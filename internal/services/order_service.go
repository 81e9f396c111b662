package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"marketplace/internal/apperror"
	"marketplace/internal/models"
	"marketplace/internal/repositories"
	"marketplace/pkg/payment"
)

// MaxItemQuantity caps the quantity of one product in a single order.
const MaxItemQuantity = 10000

// OrderService handles order placement and the order status lifecycle.
type OrderService struct {
	orderRepo   repositories.OrderRepository
	productRepo repositories.ProductRepository
	payments    payment.Gateway // nil when card payments are not configured
	events      EventPublisher  // nil disables event publishing
	populator   orderPopulator
	now         func() time.Time
}

// NewOrderService creates a new OrderService. payments and events may be nil.
func NewOrderService(
	orderRepo repositories.OrderRepository,
	productRepo repositories.ProductRepository,
	userRepo repositories.UserRepository,
	payments payment.Gateway,
	events EventPublisher,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		payments:    payments,
		events:      events,
		populator:   orderPopulator{products: productRepo, users: userRepo},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// OrderItemInput is one requested line. Any client-supplied price is ignored.
type OrderItemInput struct {
	ProductID string `json:"product" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=10000"`
}

// PlaceOrderInput is the checkout payload.
type PlaceOrderInput struct {
	Items            []OrderItemInput       `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress  models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod    models.PaymentMethod   `json:"paymentMethod"`
	PaymentReference string                 `json:"paymentReference"`
}

// mergeItems folds repeated product ids into one line, keeping first-seen order.
// Every line, merged or not, must stay within 1..MaxItemQuantity.
func mergeItems(items []OrderItemInput) ([]OrderItemInput, error) {
	merged := make([]OrderItemInput, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 || item.Quantity > MaxItemQuantity {
			return nil, apperror.New(apperror.InvalidInput, "quantity must be between 1 and %d", MaxItemQuantity)
		}
		id := strings.TrimSpace(item.ProductID)
		i, ok := index[id]
		if !ok {
			index[id] = len(merged)
			merged = append(merged, OrderItemInput{ProductID: id, Quantity: item.Quantity})
			continue
		}
		if merged[i].Quantity > MaxItemQuantity-item.Quantity {
			return nil, apperror.New(apperror.InvalidInput, "quantity of product %s must be at most %d", id, MaxItemQuantity)
		}
		merged[i].Quantity += item.Quantity
	}
	return merged, nil
}

func validateShipping(addr models.ShippingAddress) error {
	if strings.TrimSpace(addr.Street) == "" || strings.TrimSpace(addr.City) == "" {
		return apperror.New(apperror.InvalidInput, "shippingAddress street and city are required")
	}
	return nil
}

// PlaceOrder prices the cart from the live catalog, reserves stock with
// conditional decrements and persists a Pending order. When any step fails,
// the decrements already applied are restored before the error is returned.
func (s *OrderService) PlaceOrder(ctx context.Context, client *models.User, in PlaceOrderInput) (*models.Order, error) {
	if err := requireRole(client, models.RoleClient); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := validateShipping(in.ShippingAddress); err != nil {
		return nil, err
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentCashOnDelivery
	}
	if !in.PaymentMethod.Valid() {
		return nil, apperror.New(apperror.InvalidInput, "Invalid payment method %q", in.PaymentMethod)
	}
	requested, err := mergeItems(in.Items)
	if err != nil {
		return nil, err
	}

	order, catalog, err := s.priceOrder(ctx, client, requested)
	if err != nil {
		return nil, err
	}
	order.ShippingAddress = in.ShippingAddress
	order.PaymentMethod = in.PaymentMethod

	if err := s.verifyPayment(ctx, order, in.PaymentReference); err != nil {
		return nil, err
	}

	if err := s.reserve(ctx, order.Items, catalog); err != nil {
		return nil, err
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.release(ctx, order.Items)
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, paymentReused(err)
		}
		return nil, apperror.Wrap(err, apperror.Internal, "failed to create order")
	}

	entry := log.WithFields(log.Fields{"order_id": order.ID, "user_id": client.ID})
	entry.WithField("total", order.TotalPrice.StringFixed(2)).Info("order placed")

	publishOrderEvent(ctx, s.events, models.OrderEvent{
		Type:       models.EventOrderCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.TotalPrice,
		OccurredAt: order.CreatedAt,
	})

	order.User = client.Summary()
	for i := range order.Items {
		order.Items[i].Product = catalog[order.Items[i].ProductID].Summary()
	}
	return order, nil
}

// priceOrder checks every line against the catalog and builds an unsaved order
// priced from live catalog prices.
func (s *OrderService) priceOrder(ctx context.Context, client *models.User, requested []OrderItemInput) (*models.Order, map[string]*models.Product, error) {
	ids := make([]string, len(requested))
	for i, item := range requested {
		ids[i] = item.ProductID
	}
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, storageError(err, "Products")
	}
	catalog := make(map[string]*models.Product, len(products))
	for i := range products {
		catalog[products[i].ID] = &products[i]
	}

	order := &models.Order{
		UserID: client.ID,
		Items:  make([]models.OrderItem, 0, len(requested)),
		Status: models.StatusPending,
	}
	for _, item := range requested {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, nil, apperror.New(apperror.NotFound, "Product %s not found", item.ProductID)
		}
		if !product.IsActive {
			return nil, nil, apperror.New(apperror.InvalidInput, "%s is not available", product.Name)
		}
		if product.Stock < item.Quantity {
			return nil, nil, apperror.New(apperror.InsufficientStock, "Insufficient stock for %s", product.Name)
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: product.ID,
			SellerID:  product.SellerID,
			Quantity:  item.Quantity,
			Price:     product.Price,
		})
	}
	order.TotalPrice = order.ItemsTotal()
	return order, catalog, nil
}

func paymentReused(err error) error {
	return apperror.Wrap(err, apperror.Conflict, "Payment has already been used for another order")
}

// verifyPayment marks the order paid only when the provider confirms a
// succeeded intent that was created for the buyer, covers the total and is
// not attached to another order yet.
func (s *OrderService) verifyPayment(ctx context.Context, order *models.Order, reference string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil
	}
	if order.PaymentMethod != models.PaymentCard {
		return apperror.New(apperror.InvalidInput, "paymentReference is only accepted for card payments")
	}
	if s.payments == nil {
		return apperror.New(apperror.Unavailable, "Card payments are not configured")
	}

	intent, err := s.payments.Retrieve(ctx, reference)
	if err != nil {
		if errors.Is(err, payment.ErrIntentNotFound) {
			return apperror.Wrap(err, apperror.InvalidInput, "Payment not found")
		}
		return apperror.Wrap(err, apperror.Unavailable, "Payment provider is unavailable")
	}
	if !intent.OwnedBy(order.UserID) {
		return apperror.New(apperror.InvalidInput, "Payment does not belong to this account")
	}
	if !intent.Paid() {
		return apperror.New(apperror.InvalidInput, "Payment status: %s", intent.Status)
	}
	if !intent.Covers(order.TotalPrice) {
		return apperror.New(apperror.InvalidInput, "Payment amount does not cover the order total")
	}
	used, err := s.orderRepo.ExistsByPaymentReference(ctx, intent.ID)
	if err != nil {
		return storageError(err, "Orders")
	}
	if used {
		return paymentReused(errors.Errorf("intent %s already attached", intent.ID))
	}

	paidAt := s.now()
	order.IsPaid = true
	order.PaidAt = &paidAt
	order.PaymentReference = intent.ID
	return nil
}

// reserve decrements stock line by line. On the first failure the lines
// already reserved are restored.
func (s *OrderService) reserve(ctx context.Context, items []models.OrderItem, catalog map[string]*models.Product) error {
	for i, item := range items {
		err := s.productRepo.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err == nil {
			continue
		}
		s.release(ctx, items[:i])

		name := item.ProductID
		if p, ok := catalog[item.ProductID]; ok {
			name = p.Name
		}
		switch {
		case errors.Is(err, repositories.ErrInsufficientStock):
			return apperror.Wrap(err, apperror.InsufficientStock, "Insufficient stock for "+name)
		case errors.Is(err, repositories.ErrNotFound):
			return apperror.Wrap(err, apperror.NotFound, "Product "+item.ProductID+" not found")
		case errors.Is(err, repositories.ErrInvalidQuantity):
			return apperror.Wrap(err, apperror.InvalidInput, "Invalid quantity for "+name)
		default:
			return apperror.Wrap(err, apperror.Internal, "failed to reserve stock")
		}
	}
	return nil
}

// release gives reserved quantities back. It runs even if the request
// context was cancelled, since the decrements it undoes have already landed.
func (s *OrderService) release(ctx context.Context, items []models.OrderItem) {
	ctx = context.WithoutCancel(ctx)
	for _, item := range items {
		if err := s.productRepo.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"product_id": item.ProductID,
				"quantity":   item.Quantity,
			}).Error("failed to restore reserved stock")
		}
	}
}

// ListMyOrders returns the caller's orders, newest first.
func (s *OrderService) ListMyOrders(ctx context.Context, user *models.User) ([]models.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, storageError(err, "Orders")
	}
	if err := s.populator.populate(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadAccessible fetches an order the caller may see: its buyer or any seller.
func (s *OrderService) loadAccessible(ctx context.Context, user *models.User, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "Order")
	}
	if order.UserID != user.ID && user.Role != models.RoleSeller {
		return nil, apperror.New(apperror.Forbidden, "Access denied")
	}
	return order, nil
}

// GetOrder returns one order to its buyer or to a seller.
func (s *OrderService) GetOrder(ctx context.Context, user *models.User, id string) (*models.Order, error) {
	order, err := s.loadAccessible(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.populator.populateOne(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatus moves an order along its lifecycle. The write only lands
// if the order still has the status the transition was validated against.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, user *models.User, id string, status string) (*models.Order, error) {
	next := models.OrderStatus(strings.TrimSpace(status))
	if !next.Valid() {
		return nil, apperror.New(apperror.InvalidInput, "Invalid status %q", status)
	}

	order, err := s.loadAccessible(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, apperror.New(apperror.InvalidInput, "Cannot change order status from %s to %s", order.Status, next)
	}

	now := s.now()
	update := repositories.StatusUpdate{From: order.Status, To: next, UpdatedAt: now}
	if next == models.StatusDelivered {
		update.DeliveredAt = &now
	}
	if err := s.orderRepo.UpdateStatus(ctx, id, update); err != nil {
		if errors.Is(err, repositories.ErrStatusConflict) {
			return nil, apperror.Wrap(err, apperror.Conflict, "Order status was changed by another request, please retry")
		}
		return nil, storageError(err, "Order")
	}

	previous := order.Status
	order.Status = next
	order.UpdatedAt = now
	if update.DeliveredAt != nil {
		order.DeliveredAt = update.DeliveredAt
	}

	log.WithFields(log.Fields{
		"order_id": id,
		"user_id":  user.ID,
		"from":     previous,
		"to":       next,
	}).Info("order status changed")

	publishOrderEvent(ctx, s.events, models.OrderEvent{
		Type:           models.EventOrderStatusChanged,
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         next,
		PreviousStatus: previous,
		Total:          order.TotalPrice,
		OccurredAt:     now,
	})

	if err := s.populator.populateOne(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// CreatePaymentIntent asks the payment provider for a card payment handle.
func (s *OrderService) CreatePaymentIntent(ctx context.Context, user *models.User, amount decimal.Decimal, currency string) (*payment.Intent, error) {
	if s.payments == nil {
		return nil, apperror.New(apperror.Unavailable, "Card payments are not configured")
	}
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.InvalidInput, "Invalid amount")
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "usd"
	}

	intent, err := s.payments.CreateIntent(ctx, payment.ToMinorUnits(amount), currency, map[string]string{
		payment.MetadataUserID: user.ID,
		"userEmail":            user.Email,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.Unavailable, "Payment provider is unavailable")
	}
	return intent, nil
}

// ConfirmPayment reports a succeeded intent; any other status is InvalidInput.
func (s *OrderService) ConfirmPayment(ctx context.Context, intentID string) (*payment.Intent, error) {
	if s.payments == nil {
		return nil, apperror.New(apperror.Unavailable, "Card payments are not configured")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, apperror.New(apperror.InvalidInput, "Payment intent ID is required")
	}

	intent, err := s.payments.Retrieve(ctx, intentID)
	if err != nil {
		if errors.Is(err, payment.ErrIntentNotFound) {
			return nil, apperror.Wrap(err, apperror.NotFound, "Payment intent not found")
		}
		return nil, apperror.Wrap(err, apperror.Unavailable, "Payment provider is unavailable")
	}
	if !intent.Paid() {
		return nil, apperror.New(apperror.InvalidInput, "Payment status: %s", intent.Status)
	}
	return intent, nil
}
