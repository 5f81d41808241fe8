package app

import (
	"net/http"

	"github.com/lltxwdk/minimars-server/internal/limiter"
	http_middleware "github.com/lltxwdk/minimars-server/internal/middleware/http"
	"github.com/lltxwdk/minimars-server/internal/service"

	"go.uber.org/zap"
)

const (
	policyCreateBooking = "create_booking"
	policyPaymentNotify = "payment_notify"
)

type chain func(http.Handler) http.Handler

// FrontendRegister is the customer-facing route table.
type FrontendRegister HttpHandlerRegister

// ConsoleRegister is the staff-facing route table.
type ConsoleRegister HttpHandlerRegister

// NewFrontendRegister mounts the customer API and the payment provider callbacks.
func NewFrontendRegister(
	authMiddleware http_middleware.AuthMiddleware,
	limiterManager *limiter.Manager,
	bookings *service.BookingHandler,
	cards *service.CardHandler,
	notify *service.NotifyHandler,
	logger *zap.Logger,
) FrontendRegister {
	return func(mux *http.ServeMux) {
		limit := func(policy string) chain {
			return http_middleware.CreateRateLimitMiddleware(limiterManager.Get(policy), logger)
		}
		// 先驗證身分，再依使用者限流
		authed := func(policy string, h http.Handler) http.Handler {
			return authMiddleware(limit(policy)(h))
		}
		def := limiter.DefaultPolicyName

		mux.Handle("POST /api/v1/bookings", authed(policyCreateBooking, http.HandlerFunc(bookings.Create)))
		mux.Handle("POST /api/v1/bookings/price", authed(def, http.HandlerFunc(bookings.Price)))
		mux.Handle("GET /api/v1/bookings", authed(def, http.HandlerFunc(bookings.List)))
		mux.Handle("GET /api/v1/bookings/{id}", authed(def, http.HandlerFunc(bookings.Get)))
		mux.Handle("GET /api/v1/bookings/{id}/payments", authed(def, http.HandlerFunc(bookings.Payments)))
		mux.Handle("GET /api/v1/bookings/{id}/qrcode", authed(def, http.HandlerFunc(bookings.QRCode)))
		mux.Handle("POST /api/v1/bookings/{id}/cancel", authed(def, bookings.Cancel()))
		mux.Handle("POST /api/v1/bookings/{id}/cancel-request", authed(def, bookings.RequestCancel()))
		mux.Handle("POST /api/v1/cards", authed(policyCreateBooking, http.HandlerFunc(cards.Purchase)))

		// provider callbacks carry their own signatures
		mux.Handle("POST /api/v1/notify/{gateway}", limit(policyPaymentNotify)(notify))
	}
}

// NewConsoleRegister mounts the reception and review API.
func NewConsoleRegister(
	authMiddleware http_middleware.AuthMiddleware,
	limiterManager *limiter.Manager,
	bookings *service.BookingHandler,
	cards *service.CardHandler,
	logger *zap.Logger,
) ConsoleRegister {
	return func(mux *http.ServeMux) {
		rl := http_middleware.CreateRateLimitMiddleware(limiterManager.Get(limiter.DefaultPolicyName), logger)
		authed := func(h http.Handler) http.Handler {
			return authMiddleware(rl(h))
		}

		mux.Handle("POST /api/v1/console/bookings", authed(http.HandlerFunc(bookings.Create)))
		mux.Handle("POST /api/v1/console/bookings/price", authed(http.HandlerFunc(bookings.Price)))
		mux.Handle("GET /api/v1/console/bookings", authed(http.HandlerFunc(bookings.List)))
		mux.Handle("GET /api/v1/console/bookings/{id}", authed(http.HandlerFunc(bookings.Get)))
		mux.Handle("DELETE /api/v1/console/bookings/{id}", authed(http.HandlerFunc(bookings.Delete)))
		mux.Handle("GET /api/v1/console/bookings/{id}/payments", authed(http.HandlerFunc(bookings.Payments)))
		mux.Handle("GET /api/v1/console/bookings/{id}/audit-logs", authed(http.HandlerFunc(bookings.AuditLogs)))
		mux.Handle("GET /api/v1/console/bookings/{id}/qrcode", authed(http.HandlerFunc(bookings.QRCode)))
		mux.Handle("POST /api/v1/console/bookings/{id}/check-in", authed(bookings.CheckIn()))
		mux.Handle("POST /api/v1/console/bookings/{id}/checkout", authed(bookings.Checkout()))
		mux.Handle("POST /api/v1/console/bookings/{id}/cancel", authed(bookings.Cancel()))
		mux.Handle("POST /api/v1/console/bookings/{id}/cancel-review", authed(http.HandlerFunc(bookings.ReviewCancel)))
		mux.Handle("POST /api/v1/console/bookings/{id}/retry-refund", authed(bookings.RetryRefund()))
		mux.Handle("POST /api/v1/console/bookings/{id}/upgrade", authed(http.HandlerFunc(bookings.Upgrade)))
		mux.Handle("POST /api/v1/console/cards", authed(http.HandlerFunc(cards.Purchase)))
	}
}
