package api

import (
	"net/http"

	"tradehook/internal/api/handlers"
	"tradehook/internal/api/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies содержит зависимости HTTP-слоя
type Dependencies struct {
	Engine handlers.TradeEngine
	Trades handlers.TradeStore
}

// SetupRoutes настраивает HTTP маршруты приложения.
//
// Маршруты:
//
//	POST /webhook  - алерты TradingView (pipe-формат в теле)
//	GET  /trades   - снимок активных сделок
//	GET  /ping     - liveness-проба ("pong")
//	GET  /health   - health check
//	GET  /metrics  - Prometheus метрики
//
// Middleware: Recovery → Logging для всех маршрутов
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)

	if deps != nil && deps.Engine != nil {
		webhookHandler := handlers.NewWebhookHandler(deps.Engine, nil)
		router.HandleFunc("/webhook", webhookHandler.Handle).Methods("POST")
	}

	if deps != nil && deps.Trades != nil {
		tradesHandler := handlers.NewTradesHandler(deps.Trades)
		router.HandleFunc("/trades", tradesHandler.Handle).Methods("GET")
	}

	router.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
