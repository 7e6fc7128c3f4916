package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter constructs the router with all API endpoints registered.
func NewRouter(svc SettlementService) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/fair/commit", h.FairCommitHandler)
	r.Post("/fair/flip", h.FairFlipHandler)
	r.Post("/settle", h.SettleHandler)
	r.Get("/house-balance", h.HouseBalanceHandler)
	r.Get("/stats", h.StatsHandler)
	r.Get("/burns", h.BurnsHandler)

	return r
}
