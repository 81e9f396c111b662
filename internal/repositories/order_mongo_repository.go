package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/models"
)

// MongoOrderRepository stores orders, with embedded line items, in the "orders" collection.
type MongoOrderRepository struct {
	coll *mongo.Collection
}

// NewMongoOrderRepository creates a new instance of MongoOrderRepository.
func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{coll: db.Collection("orders")}
}

var newestOrdersFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// Create inserts a new order.
func (r *MongoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(ErrDuplicate, "payment reference %s", order.PaymentReference)
		}
		return errors.Wrap(err, "failed to create order")
	}
	return nil
}

// ExistsByPaymentReference reports whether an order already carries reference.
func (r *MongoOrderRepository) ExistsByPaymentReference(ctx context.Context, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	count, err := r.coll.CountDocuments(ctx, bson.M{"payment_reference": reference}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, "failed to look up payment reference")
	}
	return count > 0, nil
}

// GetByID returns an order by its ID.
func (r *MongoOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(ErrNotFound, "order with ID %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get order by ID %s", id)
	}
	return &order, nil
}

func (r *MongoOrderRepository) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(newestOrdersFirst))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query orders")
	}
	orders := make([]models.Order, 0)
	if err := cur.All(ctx, &orders); err != nil {
		return nil, errors.Wrap(err, "failed to decode orders")
	}
	return orders, nil
}

// ListByUser returns the orders placed by userID, newest first.
func (r *MongoOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

// ListBySeller returns the orders with at least one item sold by sellerID.
func (r *MongoOrderRepository) ListBySeller(ctx context.Context, sellerID string) ([]models.Order, error) {
	return r.find(ctx, bson.M{"items.seller_id": sellerID})
}

// UpdateStatus changes the status only while the document still holds update.From.
func (r *MongoOrderRepository) UpdateStatus(ctx context.Context, id string, update StatusUpdate) error {
	set := bson.M{"status": update.To, "updated_at": update.UpdatedAt}
	if update.DeliveredAt != nil {
		set["delivered_at"] = *update.DeliveredAt
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "status": update.From}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrapf(err, "failed to update status of order %s", id)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "failed to check order %s", id)
	}
	if count == 0 {
		return errors.Wrapf(ErrNotFound, "order with ID %s for status update", id)
	}
	return errors.Wrapf(ErrStatusConflict, "order %s", id)
}
