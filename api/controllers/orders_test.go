package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mapmarket/mapmarket-backend/api/middleware"
	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
)

type stubOrderService struct {
	created *orders.CreateInput
	order   *models.Order
	detail  *orders.Detail
	err     error
}

func (s *stubOrderService) Create(_ context.Context, input orders.CreateInput) (*models.Order, error) {
	s.created = &input
	return s.order, s.err
}

func (s *stubOrderService) Get(_ context.Context, _ uuid.UUID, _ uint, _ bool) (*orders.Detail, error) {
	return s.detail, s.err
}

func (s *stubOrderService) GetByNumber(_ context.Context, _ uuid.UUID, _ string, _ bool) (*orders.Detail, error) {
	return s.detail, s.err
}

func (s *stubOrderService) List(_ context.Context, _ orders.ListInput) (*orders.OrderList, error) {
	return &orders.OrderList{}, s.err
}

func (s *stubOrderService) UpdateStatus(_ context.Context, _ orders.UpdateStatusInput) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) ConfirmDelivery(_ context.Context, _ orders.ConfirmDeliveryInput) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) Cancel(_ context.Context, _ orders.CancelInput) (*models.Order, error) {
	return s.order, s.err
}

func authedRequest(method, target, body string, userID uuid.UUID, role string) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), userID, "buyer@example.com", role))
	return req
}

func TestCreateOrderReturnsReceipt(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrderService{order: &models.Order{
		OrderNumber: "MAP-1A2B3C4D",
		TotalAmount: decimal.RequireFromString("1148.50"),
		OrderStatus: enums.OrderStatusPlaced,
		OrderDate:   time.Now(),
	}}
	handler := CreateOrder(svc, nil)

	body := `{"items":[{"product_id":"PRD-001","qty":2}],"payment_method":"razorpay"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/orders", body, userID, "customer"))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.created == nil || svc.created.UserID != userID {
		t.Fatalf("service not called with authenticated user")
	}
	if svc.created.PaymentMethod != enums.PaymentMethodRazorpay {
		t.Fatalf("payment method = %s", svc.created.PaymentMethod)
	}

	var envelope struct {
		Data struct {
			OrderNumber string `json:"OrderNumber"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderNumber != "MAP-1A2B3C4D" {
		t.Fatalf("order number = %q", envelope.Data.OrderNumber)
	}
}

func TestCreateOrderRejectsUnknownPaymentMethod(t *testing.T) {
	handler := CreateOrder(&stubOrderService{}, nil)

	body := `{"items":[{"product_id":"PRD-001","qty":1}],"payment_method":"barter"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/orders", body, uuid.New(), "customer"))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	handler := CreateOrder(&stubOrderService{}, nil)

	body := `{"items":[],"payment_method":"razorpay"}`
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/orders", body, uuid.New(), "customer"))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetOrderForbiddenPassesThrough(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")}
	handler := GetOrder(svc, nil)

	req := authedRequest(http.MethodGet, "/api/orders/7", "", uuid.New(), "customer")
	req = withURLParam(req, "orderId", "7")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestOrderTimelineReturnsEntries(t *testing.T) {
	svc := &stubOrderService{detail: &orders.Detail{
		Order: models.Order{OrderNumber: "MAP-1A2B3C4D"},
		Timeline: []models.OrderTimelineEntry{
			{OrderID: 7, Status: string(enums.OrderStatusPlaced)},
			{OrderID: 7, Status: string(enums.OrderStatusConfirmed)},
		},
	}}
	handler := OrderTimeline(svc, nil)

	req := authedRequest(http.MethodGet, "/api/orders/7/timeline", "", uuid.New(), "customer")
	req = withURLParam(req, "orderId", "7")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			OrderNumber string            `json:"order_number"`
			Timeline    []json.RawMessage `json:"timeline"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderNumber != "MAP-1A2B3C4D" || len(envelope.Data.Timeline) != 2 {
		t.Fatalf("unexpected timeline payload: %+v", envelope.Data)
	}
}

func TestUpdateOrderStatusInvalidStatus(t *testing.T) {
	handler := UpdateOrderStatus(&stubOrderService{}, nil)

	req := authedRequest(http.MethodPost, "/api/orders/7/update-status", `{"status":"teleported"}`, uuid.New(), "admin")
	req = withURLParam(req, "orderId", "7")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCancelOrderPassesAdminFlag(t *testing.T) {
	var got orders.CancelInput
	svc := &cancelCapturingService{stubOrderService: stubOrderService{order: &models.Order{OrderStatus: enums.OrderStatusCancelled}}, got: &got}
	handler := CancelOrder(svc, nil)

	req := authedRequest(http.MethodPost, "/api/orders/7/cancel", `{"reason":"changed my mind"}`, uuid.New(), "admin")
	req = withURLParam(req, "orderId", "7")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !got.Admin || got.OrderID != 7 || got.Reason != "changed my mind" {
		t.Fatalf("cancel input = %+v", got)
	}
}

func TestCancelOrderRequiresReason(t *testing.T) {
	var got orders.CancelInput
	svc := &cancelCapturingService{stubOrderService: stubOrderService{}, got: &got}
	handler := CancelOrder(svc, nil)

	req := authedRequest(http.MethodPost, "/api/orders/7/cancel", `{"reason":""}`, uuid.New(), "customer")
	req = withURLParam(req, "orderId", "7")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.OrderID != 0 {
		t.Fatalf("service must not be called without a reason, got %+v", got)
	}
}

type cancelCapturingService struct {
	stubOrderService
	got *orders.CancelInput
}

func (s *cancelCapturingService) Cancel(_ context.Context, input orders.CancelInput) (*models.Order, error) {
	*s.got = input
	return s.order, s.err
}
