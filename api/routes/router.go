package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mapmarket/mapmarket-backend/api/controllers"
	"github.com/mapmarket/mapmarket-backend/api/middleware"
	"github.com/mapmarket/mapmarket-backend/internal/billing"
	"github.com/mapmarket/mapmarket-backend/internal/cart"
	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/internal/otp"
	"github.com/mapmarket/mapmarket-backend/internal/payments"
	"github.com/mapmarket/mapmarket-backend/internal/products"
	"github.com/mapmarket/mapmarket-backend/internal/qrpayments"
	"github.com/mapmarket/mapmarket-backend/internal/users"
	"github.com/mapmarket/mapmarket-backend/internal/wishlist"
	"github.com/mapmarket/mapmarket-backend/pkg/config"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

// Deps collects everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Redis controllers.Pinger

	Users      users.Service
	Products   products.Service
	Cart       cart.Service
	Wishlist   wishlist.Service
	Billing    billing.Service
	Orders     orders.Service
	Payments   payments.Service
	QRPayments qrpayments.Service
	OTP        otp.Service

	StripeGateway *payments.StripeGateway
	WebhookGuard  *payments.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", controllers.Signup(deps.Users, logg))
		r.Post("/login", controllers.Login(deps.Users, logg))

		r.Get("/products", controllers.ListProducts(deps.Products, logg))
		r.Get("/products/{productId}", controllers.GetProduct(deps.Products, logg))
		r.Get("/products/{productId}/ratings", controllers.ProductRatings(deps.Products, logg))

		r.Route("/email", func(r chi.Router) {
			r.Post("/send-otp", controllers.SendOTP(deps.OTP, logg))
			r.Post("/verify-otp", controllers.VerifyOTP(deps.OTP, deps.Users, logg))
			r.Post("/resend-otp", controllers.ResendOTP(deps.OTP, logg))
		})

		r.Route("/payment/webhook", func(r chi.Router) {
			r.Post("/razorpay", controllers.RazorpayWebhook(deps.Payments, deps.WebhookGuard, logg))
			r.Post("/stripe", controllers.StripeWebhook(deps.Payments, deps.StripeGateway, deps.WebhookGuard, logg))
		})

		r.Get("/payment/qr/{qrId}/status", controllers.QRStatus(deps.QRPayments, logg))
		r.Get("/payment/qr/{qrId}/image", controllers.QRImage(deps.QRPayments, logg))

		// authenticated surface
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/profile", controllers.Profile(deps.Users, logg))

			r.With(middleware.RequireAdmin(logg)).Post("/products", controllers.CreateProduct(deps.Products, logg))
			r.With(middleware.RequireAdmin(logg)).Put("/products/{productId}", controllers.UpdateProduct(deps.Products, logg))
			r.With(middleware.RequireAdmin(logg)).Delete("/products/{productId}", controllers.DeleteProduct(deps.Products, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(deps.Cart, logg))
				r.Post("/", controllers.AddCartItem(deps.Cart, logg))
				r.Delete("/", controllers.ClearCart(deps.Cart, logg))
				r.Put("/{productId}", controllers.UpdateCartItem(deps.Cart, logg))
				r.Delete("/{productId}", controllers.RemoveCartItem(deps.Cart, logg))
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", controllers.GetWishlist(deps.Wishlist, logg))
				r.Post("/", controllers.AddWishlistItem(deps.Wishlist, logg))
				r.Delete("/{productId}", controllers.RemoveWishlistItem(deps.Wishlist, logg))
			})

			r.Route("/billing", func(r chi.Router) {
				r.Post("/", controllers.CreateBilling(deps.Billing, logg))
				r.Get("/user", controllers.ListBilling(deps.Billing, logg))
				r.Put("/{billingId}", controllers.UpdateBilling(deps.Billing, logg))
				r.Delete("/{billingId}", controllers.DeleteBilling(deps.Billing, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", controllers.CreateOrder(deps.Orders, logg))
				r.Get("/", controllers.ListOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
				r.Get("/{orderId}/timeline", controllers.OrderTimeline(deps.Orders, logg))
				r.With(middleware.RequireAdmin(logg)).Post("/{orderId}/update-status", controllers.UpdateOrderStatus(deps.Orders, logg))
				r.Post("/{orderId}/delivery/confirm", controllers.ConfirmDelivery(deps.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.CancelOrder(deps.Orders, logg))
				r.Post("/{orderId}/rate", controllers.RateOrder(deps.Products, deps.Users, logg))
			})

			r.Route("/payment", func(r chi.Router) {
				r.Post("/razorpay/create-order", controllers.CreateRazorpayOrder(deps.Payments, logg))
				r.Post("/razorpay/verify", controllers.VerifyRazorpayPayment(deps.Payments, logg))
				r.Post("/stripe/create-intent", controllers.CreateStripeIntent(deps.Payments, logg))
				r.Post("/stripe/confirm", controllers.ConfirmStripePayment(deps.Payments, logg))
				r.Post("/qr/generate", controllers.GenerateQR(deps.QRPayments, logg))
				r.Post("/qr/{qrId}/verify", controllers.VerifyQR(deps.QRPayments, logg))
			})
		})
	})

	return r
}
