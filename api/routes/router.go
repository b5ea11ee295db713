package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafaelcosta/muralize-backend/api/controllers"
	billingcontrollers "github.com/rafaelcosta/muralize-backend/api/controllers/billing"
	plancontrollers "github.com/rafaelcosta/muralize-backend/api/controllers/plans"
	subscriptioncontrollers "github.com/rafaelcosta/muralize-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/rafaelcosta/muralize-backend/api/controllers/webhooks"
	"github.com/rafaelcosta/muralize-backend/api/middleware"
	billingsvc "github.com/rafaelcosta/muralize-backend/internal/billing"
	plansvc "github.com/rafaelcosta/muralize-backend/internal/plans"
	subsvc "github.com/rafaelcosta/muralize-backend/internal/subscriptions"
	stripewebhook "github.com/rafaelcosta/muralize-backend/internal/webhooks/stripe"
	"github.com/rafaelcosta/muralize-backend/pkg/config"
	"github.com/rafaelcosta/muralize-backend/pkg/db"
	"github.com/rafaelcosta/muralize-backend/pkg/logger"
	"github.com/rafaelcosta/muralize-backend/pkg/redis"
	"github.com/rafaelcosta/muralize-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	billingService *billingsvc.Service,
	plansService *plansvc.Service,
	subscriptionsService *subsvc.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Get("/v1/plans", plancontrollers.List(plansService, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RateLimit(cfg.RateLimit, redisClient, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/billing", func(r chi.Router) {
			r.Get("/profile", billingcontrollers.Profile(billingService, logg))
			r.Put("/profile", billingcontrollers.UpsertProfile(billingService, logg))
			r.Post("/checkout", billingcontrollers.CreateCheckoutSession(billingService, logg))
			r.Post("/portal", billingcontrollers.CreatePortalSession(billingService, logg))
			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", billingcontrollers.ListInvoices(billingService, logg))
				r.Get("/stats", billingcontrollers.InvoiceStats(billingService, logg))
			})
		})

		r.Route("/v1/subscriptions", func(r chi.Router) {
			r.Get("/current", subscriptioncontrollers.Current(subscriptionsService, logg))
			r.Get("/history", subscriptioncontrollers.History(subscriptionsService, logg))
			r.Post("/cancel", subscriptioncontrollers.Cancel(subscriptionsService, logg))
			r.Post("/reactivate", subscriptioncontrollers.Reactivate(subscriptionsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/plans", func(r chi.Router) {
			r.Post("/", plancontrollers.AdminCreate(plansService, logg))
			r.Post("/{planId}/activate", plancontrollers.AdminActivate(plansService, logg))
		})
	})

	return r
}
