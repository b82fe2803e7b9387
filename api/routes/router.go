package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-fulfillment/api/controllers"
	"github.com/angelmondragon/storefront-fulfillment/api/middleware"
	"github.com/angelmondragon/storefront-fulfillment/internal/fulfillment"
	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/internal/orders"
	"github.com/angelmondragon/storefront-fulfillment/internal/packaging"
	"github.com/angelmondragon/storefront-fulfillment/internal/promotions"
	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	pkgauth "github.com/angelmondragon/storefront-fulfillment/pkg/auth"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-fulfillment/pkg/redis"
)

// Services bundles what the router hands to controllers.
type Services struct {
	Fulfillment fulfillment.Service
	Materials   materials.Service
	Ledger      stockledger.Service
	Packaging   packaging.Service
	Promotions  promotions.Service
	PromoEngine *promotions.Engine
	Orders      orders.Service
}

// Infra carries the readiness checks and side services the router mounts.
type Infra struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services, infra Infra) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	checks := map[string]controllers.Pinger{"database": infra.DB}
	if infra.Redis != nil {
		checks["redis"] = infra.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks))
	})
	if infra.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", infra.Metrics)
	}

	idem := middleware.Idempotency(infra.Idempotency, middleware.IdempotencyTTL, logg)
	critical := middleware.Idempotency(infra.Idempotency, middleware.CriticalIdempotencyTTL, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/promo-codes/evaluate", controllers.EvaluatePromoCode(svc.PromoEngine, logg))
		r.Post("/checkout/quote", controllers.CheckoutQuote(svc.Orders, logg))
		r.With(critical).Post("/checkout", controllers.Checkout(svc.Orders, logg))
		r.Post("/webhooks/payments", controllers.PaymentWebhook(svc.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWT, logg))

		r.With(idem).Post("/production", controllers.AdminProduce(svc.Fulfillment, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(idem).Post("/pack", controllers.AdminPackOrders(svc.Fulfillment, logg))
			r.Get("/{orderId}", controllers.AdminGetOrder(svc.Orders, logg))
			r.With(critical).Post("/{orderId}/cancel", controllers.AdminTransitionOrder(svc.Orders, enums.OrderStatusCancelled, logg))
			r.With(critical).Post("/{orderId}/complete", controllers.AdminTransitionOrder(svc.Orders, enums.OrderStatusCompleted, logg))
			r.With(middleware.RequireRole(logg, pkgauth.RoleAdmin), critical).
				Post("/{orderId}/refund", controllers.AdminTransitionOrder(svc.Orders, enums.OrderStatusRefunded, logg))
		})

		r.Route("/materials", func(r chi.Router) {
			r.Get("/", controllers.AdminListMaterials(svc.Materials, logg))
			r.Get("/low-stock", controllers.AdminLowStockMaterials(svc.Materials, logg))
			r.With(middleware.RequireRole(logg, pkgauth.RoleAdmin)).Post("/", controllers.AdminCreateMaterial(svc.Materials, logg))
			r.With(idem).Post("/{materialId}/adjust", controllers.AdminAdjustMaterial(svc.Materials, logg))
			r.Get("/{materialId}/movements", controllers.AdminMaterialMovements(svc.Ledger, logg))
			r.Get("/{materialId}/reconcile", controllers.AdminReconcileMaterial(svc.Ledger, logg))
		})

		r.Route("/packaging-rules", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, pkgauth.RoleAdmin))
			r.Get("/", controllers.AdminListPackagingRules(svc.Packaging, logg))
			r.Post("/", controllers.AdminCreatePackagingRule(svc.Packaging, logg))
			r.Patch("/{ruleId}", controllers.AdminUpdatePackagingRule(svc.Packaging, logg))
			r.Delete("/{ruleId}", controllers.AdminDeletePackagingRule(svc.Packaging, logg))
		})

		r.Route("/promo-codes", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, pkgauth.RoleAdmin))
			r.Get("/", controllers.AdminListPromoCodes(svc.Promotions, logg))
			r.Post("/", controllers.AdminCreatePromoCode(svc.Promotions, logg))
			r.Patch("/{promoId}", controllers.AdminUpdatePromoCode(svc.Promotions, logg))
			r.Post("/{promoId}/deactivate", controllers.AdminDeactivatePromoCode(svc.Promotions, logg))
		})
	})

	return r
}
