package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

// orderTransitions lists the successor states allowed from each status.
// Delivered and Cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether next is an allowed successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod is how the customer settles an order.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "Cash on Delivery"
	PaymentCard           PaymentMethod = "Card"
	PaymentUPI            PaymentMethod = "UPI"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentCard, PaymentUPI:
		return true
	}
	return false
}

// ShippingAddress is copied onto the order so later profile edits do not alter it.
type ShippingAddress struct {
	Street  string `json:"street" bson:"street"`
	City    string `json:"city" bson:"city"`
	State   string `json:"state" bson:"state"`
	ZipCode string `json:"zipCode" bson:"zip_code"`
	Phone   string `json:"phone" bson:"phone"`
}

// OrderItem represents a single item within an order.
type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey;autoIncrement" bson:"-"`
	OrderID   string          `json:"-" gorm:"type:varchar(36);index;not null" bson:"-"`
	ProductID string          `json:"productId" gorm:"type:varchar(36);index;not null" bson:"product_id"`
	SellerID  string          `json:"sellerId" gorm:"type:varchar(36);index;not null" bson:"seller_id"`
	Quantity  int             `json:"quantity" gorm:"not null" bson:"quantity"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null" bson:"price"` // Price at the time of order
	Product   *ProductSummary `json:"product,omitempty" gorm:"-" bson:"-"`
}

// Subtotal is price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a customer order.
type Order struct {
	ID               string          `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	UserID           string          `json:"userId" gorm:"type:varchar(36);index;not null" bson:"user_id"`
	User             *UserSummary    `json:"user,omitempty" gorm:"-" bson:"-"`
	Items            []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" bson:"items"`
	ShippingAddress  ShippingAddress `json:"shippingAddress" gorm:"embedded;embeddedPrefix:shipping_" bson:"shipping_address"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod" gorm:"type:varchar(32);not null" bson:"payment_method"`
	TotalPrice       decimal.Decimal `json:"totalPrice" gorm:"type:decimal(12,2);not null" bson:"total_price"`
	Status           OrderStatus     `json:"status" gorm:"type:varchar(16);index;not null" bson:"status"`
	IsPaid           bool            `json:"isPaid" bson:"is_paid"`
	PaidAt           *time.Time      `json:"paidAt,omitempty" bson:"paid_at,omitempty"`
	PaymentReference string          `json:"paymentReference,omitempty" gorm:"type:varchar(255);uniqueIndex:idx_orders_payment_reference,where:payment_reference <> ''" bson:"payment_reference,omitempty"`
	DeliveredAt      *time.Time      `json:"deliveredAt,omitempty" bson:"delivered_at,omitempty"`
	CreatedAt        time.Time       `json:"createdAt" gorm:"index" bson:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" bson:"updated_at"`
}

// ItemsTotal sums the subtotals of every line item.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// SellerTotal sums only the line items sold by sellerID.
func (o *Order) SellerTotal(sellerID string) decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			total = total.Add(item.Subtotal())
		}
	}
	return total
}

// ProductIDs returns the distinct product ids referenced by the order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}
