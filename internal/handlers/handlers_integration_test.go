package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"bookstore/internal/database"
	"bookstore/internal/handlers"
	"bookstore/internal/middleware"
	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
	"bookstore/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	products *repositories.GORMProductRepository
	orders   *services.OrderService
	alerts   *alertRecorder
	token    string
}

// alertRecorder stands in for the mail transport.
type alertRecorder struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *alertRecorder) Send(ctx context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, body)
	return r.err
}

func (r *alertRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// setupApp sets up a Fiber app for testing with in-memory SQLite and all handlers/services.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()

	db, err := database.Open(config.DBConfig{
		Driver: config.DriverSQLite,
		URL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	alerts := &alertRecorder{}
	productService := services.NewProductService(productRepo, log)
	orderService := services.NewOrderService(productRepo, alerts, services.OrderAlert{
		To:      "admin@bookstore.com",
		Subject: "New Order Alert",
		Timeout: time.Second,
		Async:   true,
	}, log)
	authService := services.NewAuthService(userRepo, "test_jwt_secret", time.Hour, log)
	require.NoError(t, authService.EnsureAdmin(context.Background(), "admin", "admin@bookstore.com", "password123"))

	t.Cleanup(func() {
		orderService.Wait()
		database.Close(db)
	})

	guard := middleware.AuthRequired(authService, log)
	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	productHandler := handlers.NewProductHandler(productService, log)
	productHandler.RegisterRoutes(apiV1)
	productHandler.RegisterAdminRoutes(apiV1, guard)
	handlers.NewOrderHandler(orderService, log).RegisterRoutes(apiV1)
	handlers.NewAuthHandler(authService, log).RegisterRoutes(apiV1, guard)

	env := &testEnv{app: app, db: db, products: productRepo, orders: orderService, alerts: alerts}
	env.token = env.login(t, "admin", "password123")
	return env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.NotEmpty(t, body["token"])
	return body["token"]
}

func (e *testEnv) do(t *testing.T, method, path string, payload interface{}, token string) *http.Response {
	t.Helper()
	var req *http.Request
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeProducts(t *testing.T, resp *http.Response) []models.Product {
	t.Helper()
	defer resp.Body.Close()
	var products []models.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	return products
}

func TestAddAndListProducts(t *testing.T) {
	env := setupApp(t)

	resp := env.do(t, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name":  "Dune",
		"price": 9.99,
		"stock": 3,
	}, env.token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.NotZero(t, created.ID)

	resp = env.do(t, http.MethodGet, "/api/v1/products", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	products := decodeProducts(t, resp)
	assert.Equal(t, []models.Product{{ID: created.ID, Name: "Dune", Price: 9.99, Stock: 3}}, products)

	resp = env.do(t, http.MethodGet, "/api/v1/products?action=list", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodGet, "/api/v1/products?action=export", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAddProductViaForm(t *testing.T) {
	env := setupApp(t)

	resp := env.postForm(t, "/api/v1/products", url.Values{
		"name":  {"Emma"},
		"price": {"4.50"},
		"stock": {"2"},
	}, env.token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	products, err := env.products.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Emma", products[0].Name)
	assert.Equal(t, 4.5, products[0].Price)
	assert.Equal(t, 2, products[0].Stock)
}

func TestAddProductValidation(t *testing.T) {
	env := setupApp(t)

	for _, payload := range []map[string]interface{}{
		{"name": "", "price": 1.0, "stock": 1},
		{"name": "Dune", "price": -1.0, "stock": 1},
		{"name": "Dune", "price": 1.0, "stock": -5},
		{"name": "   ", "price": 1.0, "stock": 1},
	} {
		resp := env.do(t, http.MethodPost, "/api/v1/products", payload, env.token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
		resp.Body.Close()
	}

	products, err := env.products.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := setupApp(t)
	id, err := env.products.Insert(context.Background(), "Dune", 9.99, 3)
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost, "/api/v1/products", map[string]interface{}{"name": "X", "price": 1.0, "stock": 1}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", id), nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "intruder", "email": "i@example.com", "password": "password123",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Listing and ordering stay public.
	resp = env.do(t, http.MethodGet, "/api/v1/products", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	_, err = env.products.GetByID(context.Background(), id)
	assert.NoError(t, err)
}

func TestDeleteProductIsIdempotent(t *testing.T) {
	env := setupApp(t)
	id, err := env.products.Insert(context.Background(), "Dune", 9.99, 3)
	require.NoError(t, err)

	path := fmt.Sprintf("/api/v1/products/%d", id)
	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodDelete, path, nil, env.token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()
		assert.Contains(t, body["message"], "deleted successfully")
	}

	resp := env.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodDelete, "/api/v1/products/abc", nil, env.token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestDeleteProductViaForm(t *testing.T) {
	env := setupApp(t)
	id, err := env.products.Insert(context.Background(), "Dune", 9.99, 3)
	require.NoError(t, err)

	resp := env.postForm(t, "/api/v1/products/delete", url.Values{"productId": {fmt.Sprint(id)}}, env.token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	products, err := env.products.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestPlaceOrder(t *testing.T) {
	env := setupApp(t)
	id, err := env.products.Insert(context.Background(), "Dune", 9.99, 1)
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{"productId": id}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Message string               `json:"message"`
		Order   services.OrderResult `json:"order"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, services.OrderPlaced, body.Order.Status)
	assert.Equal(t, id, body.Order.ProductID)

	// Second order: stock exhausted.
	resp = env.postForm(t, "/api/v1/orders", url.Values{"productId": {fmt.Sprint(id)}}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	env.orders.Wait()
	assert.Equal(t, 1, env.alerts.count())

	p, err := env.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestPlaceOrderBadInput(t *testing.T) {
	env := setupApp(t)

	resp := env.do(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.postForm(t, "/api/v1/orders", url.Values{"productId": {"abc"}}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = env.do(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{"productId": "777"}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestPlaceOrderSucceedsWhenAlertFails(t *testing.T) {
	env := setupApp(t)
	env.alerts.err = fmt.Errorf("smtp: connection refused")
	id, err := env.products.Insert(context.Background(), "Dune", 9.99, 2)
	require.NoError(t, err)

	resp := env.do(t, http.MethodPost, "/api/v1/orders", map[string]interface{}{"productId": id}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	env.orders.Wait()
	p, err := env.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)
}

func TestConcurrentOrdersThroughHTTP(t *testing.T) {
	env := setupApp(t)
	const stock = 5
	id, err := env.products.Insert(context.Background(), "Dune", 9.99, stock)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = map[int]int{}
	)
	for i := 0; i < stock*3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			jsonBody, _ := json.Marshal(map[string]interface{}{"productId": id})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(jsonBody))
			req.Header.Set("Content-Type", "application/json")
			resp, err := env.app.Test(req, -1)
			if err != nil {
				return
			}
			resp.Body.Close()
			mu.Lock()
			codes[resp.StatusCode]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, codes[http.StatusOK])
	assert.Equal(t, stock*2, codes[http.StatusConflict])

	p, err := env.products.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupApp(t)

	resp := env.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "clerk",
		"email":    "clerk@bookstore.com",
		"password": "password456",
	}, env.token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var registerResp map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&registerResp))
	resp.Body.Close()
	assert.Equal(t, "User registered successfully", registerResp["message"])
	assert.NotContains(t, registerResp["user"], "password")

	// Duplicate registration
	resp = env.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": "clerk",
		"email":    "clerk2@bookstore.com",
		"password": "password456",
	}, env.token)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	assert.NotEmpty(t, env.login(t, "clerk", "password456"))

	resp = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "clerk",
		"password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAdminRoutes_RejectTokenOfRemovedUser(t *testing.T) {
	env := setupApp(t)

	resp := env.do(t, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name": "Dune", "price": 9.99, "stock": 3,
	}, env.token)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, env.db.Where("username = ?", "admin").Delete(&models.User{}).Error)

	resp = env.do(t, http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name": "Emma", "price": 4.5, "stock": 1,
	}, env.token)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
