package controllers

import (
	"net/http"
	"time"

	"github.com/mapmarket/mapmarket-backend/api/middleware"
	"github.com/mapmarket/mapmarket-backend/api/responses"
	"github.com/mapmarket/mapmarket-backend/api/validators"
	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/internal/products"
	"github.com/mapmarket/mapmarket-backend/internal/users"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

type orderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Qty       int    `json:"qty" validate:"required,min=1"`
}

type createOrderRequest struct {
	Items         []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	BillingInfoID *uint              `json:"billing_info_id"`
	PaymentMethod string             `json:"payment_method" validate:"required"`
}

type updateOrderStatusRequest struct {
	Status            string     `json:"status" validate:"required"`
	Description       string     `json:"description" validate:"omitempty,max=500"`
	Location          *string    `json:"location" validate:"omitempty,max=255"`
	DeliveryPartner   *string    `json:"delivery_partner" validate:"omitempty,max=100"`
	TrackingNumber    *string    `json:"tracking_number" validate:"omitempty,max=100"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

type confirmDeliveryRequest struct {
	OTP string `json:"otp" validate:"required,len=4"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type rateOrderRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=1000"`
}

// CreateOrder places an order from the submitted lines.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var body createOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		items := make([]orders.ItemInput, 0, len(body.Items))
		for _, item := range body.Items {
			items = append(items, orders.ItemInput{ProductID: item.ProductID, Qty: item.Qty})
		}

		order, err := svc.Create(r.Context(), orders.CreateInput{
			UserID:        middleware.UserIDFromContext(r.Context()),
			Items:         items,
			BillingInfoID: body.BillingInfoID,
			PaymentMethod: method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orders.Receipt{
			OrderNumber: order.OrderNumber,
			TotalAmount: order.TotalAmount,
			Status:      order.OrderStatus,
			OrderDate:   order.OrderDate,
		})
	}
}

// ListOrders pages the caller's orders. Admins see every order and may filter
// by status.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.ListInput{Params: params}

		if middleware.RoleFromContext(r.Context()) != users.RoleAdmin {
			userID := middleware.UserIDFromContext(r.Context())
			input.UserID = &userID
		}

		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}

		list, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// GetOrder serves one order with its timeline.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseUintParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		admin := middleware.RoleFromContext(r.Context()) == users.RoleAdmin
		detail, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()), orderID, admin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// OrderTimeline serves the audit trail of one order.
func OrderTimeline(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseUintParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		admin := middleware.RoleFromContext(r.Context()) == users.RoleAdmin
		detail, err := svc.Get(r.Context(), middleware.UserIDFromContext(r.Context()), orderID, admin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"order_number": detail.Order.OrderNumber,
			"timeline":     detail.Timeline,
		})
	}
}

// UpdateOrderStatus moves an order along the status graph. Admin only.
func UpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseUintParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID:           orderID,
			NewStatus:         status,
			Description:       body.Description,
			Location:          body.Location,
			UpdatedBy:         middleware.EmailFromContext(r.Context()),
			DeliveryPartner:   body.DeliveryPartner,
			TrackingNumber:    body.TrackingNumber,
			EstimatedDelivery: body.EstimatedDelivery,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// ConfirmDelivery completes the handover with the customer's delivery code.
func ConfirmDelivery(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseUintParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body confirmDeliveryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ConfirmDelivery(r.Context(), orders.ConfirmDeliveryInput{
			OrderID:   orderID,
			UserID:    middleware.UserIDFromContext(r.Context()),
			OTP:       body.OTP,
			UpdatedBy: middleware.EmailFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// CancelOrder cancels an order while it is still cancellable.
func CancelOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		orderID, err := parseUintParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Cancel(r.Context(), orders.CancelInput{
			OrderID:   orderID,
			UserID:    middleware.UserIDFromContext(r.Context()),
			Reason:    body.Reason,
			UpdatedBy: middleware.EmailFromContext(r.Context()),
			Admin:     middleware.RoleFromContext(r.Context()) == users.RoleAdmin,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// RateOrder records verified reviews for the products of a delivered order.
func RateOrder(catalog products.Service, accounts users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if catalog == nil || accounts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rating service unavailable"))
			return
		}

		orderID, err := parseUintParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rateOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		user, err := accounts.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reviews, err := catalog.RateOrder(r.Context(), products.RateOrderInput{
			OrderID:  orderID,
			UserID:   userID,
			Username: user.Username,
			Rating:   body.Rating,
			Comment:  body.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, reviews)
	}
}
