package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fundi-app/fundi-backend/api/controllers"
	webhookcontrollers "github.com/fundi-app/fundi-backend/api/controllers/webhooks"
	"github.com/fundi-app/fundi-backend/api/middleware"
	"github.com/fundi-app/fundi-backend/internal/bookings"
	"github.com/fundi-app/fundi-backend/internal/jobproofs"
	"github.com/fundi-app/fundi-backend/internal/notifications"
	"github.com/fundi-app/fundi-backend/internal/payments"
	"github.com/fundi-app/fundi-backend/internal/settlement"
	paystackwebhook "github.com/fundi-app/fundi-backend/internal/webhooks/paystack"
	"github.com/fundi-app/fundi-backend/pkg/config"
	"github.com/fundi-app/fundi-backend/pkg/db"
	"github.com/fundi-app/fundi-backend/pkg/enums"
	"github.com/fundi-app/fundi-backend/pkg/logger"
	"github.com/fundi-app/fundi-backend/pkg/metrics"
	"github.com/fundi-app/fundi-backend/pkg/paystack"
	"github.com/fundi-app/fundi-backend/pkg/redis"
)

// RouterParams collect everything the HTTP surface needs.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          redis.Pinger
	Bookings       bookings.Service
	Payments       payments.Service
	JobProofs      jobproofs.Service
	Notifications  notifications.Service
	Settlement     settlement.Service
	Webhooks       *paystackwebhook.Service
	Paystack       *paystack.Client
	WebhookMetrics *metrics.WebhookMetrics
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(p.Webhooks, p.Paystack, p.WebhookMetrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", controllers.CreateBooking(p.Bookings, logg))
			r.Get("/", controllers.ListBookings(p.Bookings, logg))
			r.Route("/{bookingId}", func(r chi.Router) {
				r.Get("/", controllers.GetBooking(p.Bookings, logg))
				r.Post("/confirm", controllers.ConfirmBooking(p.Bookings, logg))
				r.Post("/start", controllers.StartBooking(p.Bookings, logg))
				r.Post("/cancel", controllers.CancelBooking(p.Bookings, logg))
				r.Post("/cash-received", controllers.ConfirmCashPayment(p.Bookings, logg))
				r.Post("/dispute", controllers.DisputeBooking(p.Bookings, logg))
				r.Get("/payment", controllers.GetBookingPayment(p.Payments, logg))
				r.Route("/proof", func(r chi.Router) {
					r.Post("/", controllers.SubmitJobProof(p.JobProofs, logg))
					r.Get("/", controllers.GetJobProof(p.JobProofs, logg))
					r.Post("/confirm", controllers.ConfirmJobProof(p.JobProofs, logg))
				})
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))
		r.Post("/payouts/{payoutId}/retry", controllers.AdminRetryPayout(p.Settlement, logg))
		r.Post("/bookings/{bookingId}/resolve-dispute", controllers.AdminResolveDispute(p.Settlement, logg))
	})

	return r
}
