package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vasiliy-maslov/storefront-orders/internal/handler"
	"github.com/vasiliy-maslov/storefront-orders/internal/notify"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
	"github.com/vasiliy-maslov/storefront-orders/internal/ordercode"
	"github.com/vasiliy-maslov/storefront-orders/internal/settings"
)

func NewRouter(pool *pgxpool.Pool, settingsSvc settings.Service, notifier notify.Notifier, fallbackStore order.FallbackStore) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	repo := order.NewRepository(pool)
	svc := order.NewService(repo, ordercode.NewGenerator(), settingsSvc, notifier, fallbackStore)
	h := handler.NewOrderHandler(svc)
	h.RegisterRoutes(r)

	return r
}
