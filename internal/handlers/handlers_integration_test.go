package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"

	"marketplace/internal/database"
	"marketplace/internal/models"
	"marketplace/internal/server"
	"marketplace/internal/services"
	"marketplace/pkg/payment"
)

type testApp struct {
	app     *fiber.App
	auth    *services.AuthService
	store   *database.Store
	gateway *payment.MemoryGateway
}

// setupApp sets up a Fiber app for testing with in-memory SQLite and all handlers/services.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	store, err := database.OpenGORM(sqlite.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	gateway := payment.NewMemoryGateway(false)
	auth := services.NewAuthService(store.Users, services.AuthConfig{JWTSecret: "test_jwt_secret", BcryptCost: bcrypt.MinCost})
	app := server.New(server.Services{
		Auth:     auth,
		Products: services.NewProductService(store.Products, store.Users),
		Orders:   services.NewOrderService(store.Orders, store.Products, store.Users, gateway, nil),
		Sellers:  services.NewSellerService(store.Products, store.Orders, store.Users),
	}, server.Options{})

	return &testApp{app: app, auth: auth, store: store, gateway: gateway}
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// do sends a JSON request and decodes the JSON response into out when out is non-nil.
func (ta *testApp) do(t *testing.T, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ta.app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (ta *testApp) register(t *testing.T, name, email string) string {
	t.Helper()
	var resp map[string]interface{}
	status := ta.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "password123",
	}, &resp)
	require.Equal(t, http.StatusCreated, status, resp)
	return resp["token"].(string)
}

func (ta *testApp) seller(t *testing.T, email string) string {
	t.Helper()
	seller, _, err := ta.auth.EnsureSeller(context.Background(), "Seller", email, "seller123", "")
	require.NoError(t, err)
	token, err := ta.auth.GenerateToken(seller.ID)
	require.NoError(t, err)
	return token
}

type message struct {
	Message string `json:"message"`
}

func TestAuthRegisterAndLogin(t *testing.T) {
	ta := setupApp(t)

	var registered map[string]interface{}
	status := ta.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Jane", "email": "jane@example.com", "password": "password123", "role": "seller",
	}, &registered)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "client", registered["role"])
	assert.Equal(t, registered["id"], registered["_id"])
	assert.NotEmpty(t, registered["token"])
	assert.NotContains(t, registered, "password")

	var dup message
	status = ta.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Jane", "email": "jane@example.com", "password": "password123",
	}, &dup)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User already exists", dup.Message)

	var bad message
	status = ta.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "jane@example.com", "password": "nope"}, &bad)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid email or password", bad.Message)

	var login map[string]interface{}
	status = ta.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "jane@example.com", "password": "password123"}, &login)
	require.Equal(t, http.StatusOK, status)
	token := login["token"].(string)

	var me models.User
	status = ta.do(t, http.MethodGet, "/api/auth/me", token, nil, &me)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "jane@example.com", me.Email)

	var updated models.User
	status = ta.do(t, http.MethodPut, "/api/auth/profile", token, map[string]interface{}{
		"name":    "Jane Doe",
		"address": map[string]string{"street": "1 Main St", "city": "Springfield"},
	}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Jane Doe", updated.Name)
	assert.Equal(t, "Springfield", updated.Address.City)
	assert.Equal(t, models.RoleClient, updated.Role)
}

func TestAuthErrors(t *testing.T) {
	ta := setupApp(t)

	var msg message
	status := ta.do(t, http.MethodGet, "/api/auth/me", "", nil, &msg)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authorized, no token", msg.Message)

	status = ta.do(t, http.MethodGet, "/api/auth/me", "garbage", nil, &msg)
	assert.Equal(t, http.StatusUnauthorized, status)

	status = ta.do(t, http.MethodGet, "/api/auth/register", "", nil, &msg)
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	status = ta.do(t, http.MethodGet, "/api/nothing-here", "", nil, &msg)
	assert.Equal(t, http.StatusNotFound, status)

	client := ta.register(t, "Client", "client@example.com")
	status = ta.do(t, http.MethodGet, "/api/seller/dashboard", client, nil, &msg)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Access denied. Seller only.", msg.Message)
}

func TestCatalogEndpoints(t *testing.T) {
	ta := setupApp(t)
	seller := ta.seller(t, "seller@example.com")

	for _, p := range []map[string]interface{}{
		{"name": "Fresh Bananas", "price": 1.99, "category": "Fruits", "stock": 100},
		{"name": "Sweet Apples", "price": 3.99, "category": "Fruits", "stock": 75},
		{"name": "Whole Milk", "price": 5.49, "category": "Dairy", "stock": 30},
		{"name": "Hidden", "price": 1, "category": "Dairy", "stock": 1, "isActive": false},
	} {
		require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/api/seller/products", seller, p, nil))
	}

	var page services.ProductPage
	status := ta.do(t, http.MethodGet, "/api/products?sort=price-low&limit=2", "", nil, &page)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Products, 2)
	assert.Equal(t, "Fresh Bananas", page.Products[0].Name)
	require.NotNil(t, page.Products[0].Seller)

	status = ta.do(t, http.MethodGet, "/api/products?category=Dairy&search=MILK", "", nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Whole Milk", page.Products[0].Name)

	var fruits []models.Product
	status = ta.do(t, http.MethodGet, "/api/products/category/Fruits", "", nil, &fruits)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, fruits, 2)

	var product models.Product
	status = ta.do(t, http.MethodGet, "/api/products/"+page.Products[0].ID, "", nil, &product)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, page.Products[0].Price.Equal(product.Price))

	var msg message
	status = ta.do(t, http.MethodGet, "/api/products/"+uuid.NewString(), "", nil, &msg)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Product not found", msg.Message)
}

func TestOrderWorkflow(t *testing.T) {
	ta := setupApp(t)
	seller := ta.seller(t, "seller@example.com")
	client := ta.register(t, "Client", "client@example.com")

	var product models.Product
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/api/seller/products", seller, map[string]interface{}{
		"name": "Strawberries", "price": 4.99, "category": "Fruits", "stock": 10,
	}, &product))

	orderBody := map[string]interface{}{
		"items":           []map[string]interface{}{{"product": product.ID, "quantity": 3, "price": 0.01}},
		"shippingAddress": map[string]string{"street": "1 Main St", "city": "Springfield"},
		"isPaid":          true,
	}

	var msg message
	status := ta.do(t, http.MethodPost, "/api/orders", seller, orderBody, &msg)
	assert.Equal(t, http.StatusForbidden, status)

	var order models.Order
	status = ta.do(t, http.MethodPost, "/api/orders", client, orderBody, &order)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "14.97", order.TotalPrice.StringFixed(2))
	assert.Equal(t, models.StatusPending, order.Status)
	assert.False(t, order.IsPaid)

	var stored models.Product
	ta.do(t, http.MethodGet, "/api/products/"+product.ID, "", nil, &stored)
	assert.Equal(t, 7, stored.Stock)

	status = ta.do(t, http.MethodPut, "/api/orders/"+order.ID+"/status", seller, map[string]string{"status": "Delivered"}, &msg)
	assert.Equal(t, http.StatusBadRequest, status)

	for _, next := range []string{"Processing", "Shipped", "Delivered"} {
		var updated models.Order
		status = ta.do(t, http.MethodPut, "/api/orders/"+order.ID+"/status", seller, map[string]string{"status": next}, &updated)
		require.Equal(t, http.StatusOK, status, next)
		assert.Equal(t, models.OrderStatus(next), updated.Status)
	}

	var mine []models.Order
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/orders/myorders", client, nil, &mine))
	require.Len(t, mine, 1)
	assert.NotNil(t, mine[0].DeliveredAt)
	require.NotNil(t, mine[0].Items[0].Product)
	assert.Equal(t, "Strawberries", mine[0].Items[0].Product.Name)

	var one models.Order
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/orders/"+order.ID, client, nil, &one))
	assert.Equal(t, order.ID, one.ID)

	other := ta.register(t, "Other", "other@example.com")
	assert.Equal(t, http.StatusForbidden, ta.do(t, http.MethodGet, "/api/orders/"+order.ID, other, nil, nil))

	var stats services.DashboardStats
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/seller/dashboard", seller, nil, &stats))
	assert.Equal(t, 1, stats.TotalProducts)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, 1, stats.DeliveredOrders)
	assert.Equal(t, "14.97", stats.TotalRevenue.StringFixed(2))

	var sellerOrders []models.Order
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/seller/orders", seller, nil, &sellerOrders))
	assert.Len(t, sellerOrders, 1)

	status = ta.do(t, http.MethodPost, "/api/orders", client, map[string]interface{}{
		"items":           []map[string]interface{}{{"product": product.ID, "quantity": 8}},
		"shippingAddress": map[string]string{"street": "1 Main St", "city": "Springfield"},
	}, &msg)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Insufficient stock for Strawberries", msg.Message)
}

func TestSellerProductManagement(t *testing.T) {
	ta := setupApp(t)
	seller := ta.seller(t, "seller@example.com")
	rival := ta.seller(t, "rival@example.com")

	var product models.Product
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/api/seller/products", seller, map[string]interface{}{
		"name": "Bread", "price": "3.99", "category": "Bakery", "stock": 25,
	}, &product))

	var msg message
	assert.Equal(t, http.StatusForbidden, ta.do(t, http.MethodPut, "/api/seller/products/"+product.ID, rival, map[string]interface{}{"stock": 0}, &msg))
	assert.Equal(t, "Access denied", msg.Message)

	var updated models.Product
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodPut, "/api/seller/products/"+product.ID, seller, map[string]interface{}{"isActive": false}, &updated))
	assert.False(t, updated.IsActive)
	assert.Equal(t, 25, updated.Stock)

	var own []models.Product
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/seller/products", seller, nil, &own))
	assert.Len(t, own, 1)

	var page services.ProductPage
	ta.do(t, http.MethodGet, "/api/products", "", nil, &page)
	assert.Empty(t, page.Products)

	require.Equal(t, http.StatusOK, ta.do(t, http.MethodDelete, "/api/seller/products/"+product.ID, seller, nil, &msg))
	assert.Equal(t, "Product deleted", msg.Message)
	assert.Equal(t, http.StatusNotFound, ta.do(t, http.MethodDelete, "/api/seller/products/"+product.ID, seller, nil, nil))
}

func TestSellerImportExport(t *testing.T) {
	ta := setupApp(t)
	seller := ta.seller(t, "seller@example.com")

	book := excelize.NewFile()
	rows := [][]interface{}{
		{"Name", "Category", "Price", "Stock", "Original Price"},
		{"Potato Chips", "Snacks", "2.99", "80", "4.99"},
		{"", "Snacks", "1.00", "1"},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	workbook, err := book.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, book.Close())

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "products.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/seller/products/import", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+seller)
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	var result services.ImportResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "Potato Chips", result.Created[0].Name)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 3, result.Rejected[0].Line)

	req = httptest.NewRequest(http.MethodGet, "/api/seller/products/export", nil)
	req.Header.Set("Authorization", "Bearer "+seller)
	resp, err = ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "products.xlsx")

	exported, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer exported.Close()
	value, err := exported.GetCellValue("Products", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Potato Chips", value)
}

func TestPaymentEndpoints(t *testing.T) {
	ta := setupApp(t)
	seller := ta.seller(t, "seller@example.com")
	client := ta.register(t, "Client", "client@example.com")

	var product models.Product
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/api/seller/products", seller, map[string]interface{}{
		"name": "Cheese", "price": 5, "category": "Dairy", "stock": 10,
	}, &product))

	var intent struct {
		ClientSecret    string `json:"clientSecret"`
		PaymentIntentID string `json:"paymentIntentId"`
	}
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodPost, "/api/payment/create-payment-intent", client, map[string]interface{}{"amount": 10}, &intent))
	assert.NotEmpty(t, intent.ClientSecret)

	var msg message
	assert.Equal(t, http.StatusBadRequest, ta.do(t, http.MethodPost, "/api/payment/create-payment-intent", client, map[string]interface{}{"amount": 0}, &msg))
	assert.Equal(t, http.StatusBadRequest, ta.do(t, http.MethodPost, "/api/payment/confirm-payment", client, map[string]string{"paymentIntentId": intent.PaymentIntentID}, &msg))

	require.NoError(t, ta.gateway.Confirm(intent.PaymentIntentID))
	var confirmed struct {
		Success       bool `json:"success"`
		PaymentIntent struct {
			ID     string  `json:"id"`
			Amount float64 `json:"amount"`
			Status string  `json:"status"`
		} `json:"paymentIntent"`
	}
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodPost, "/api/payment/confirm-payment", client, map[string]string{"paymentIntentId": intent.PaymentIntentID}, &confirmed))
	assert.True(t, confirmed.Success)
	assert.Equal(t, 10.0, confirmed.PaymentIntent.Amount)

	var order models.Order
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/api/orders", client, map[string]interface{}{
		"items":            []map[string]interface{}{{"product": product.ID, "quantity": 2}},
		"shippingAddress":  map[string]string{"street": "1 Main St", "city": "Springfield"},
		"paymentMethod":    "Card",
		"paymentReference": intent.PaymentIntentID,
	}, &order))
	assert.True(t, order.IsPaid)
	assert.Equal(t, intent.PaymentIntentID, order.PaymentReference)

	assert.Equal(t, http.StatusConflict, ta.do(t, http.MethodPost, "/api/orders", client, map[string]interface{}{
		"items":            []map[string]interface{}{{"product": product.ID, "quantity": 1}},
		"shippingAddress":  map[string]string{"street": "1 Main St", "city": "Springfield"},
		"paymentMethod":    "Card",
		"paymentReference": intent.PaymentIntentID,
	}, &msg))
	assert.Equal(t, "Payment has already been used for another order", msg.Message)

	var stock models.Product
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/products/"+product.ID, "", nil, &stock))
	assert.Equal(t, 8, stock.Stock)
}

func TestHealth(t *testing.T) {
	ta := setupApp(t)
	var health map[string]string
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/health", "", nil, &health))
	assert.Equal(t, "OK", health["status"])
}
