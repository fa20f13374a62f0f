package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-widget/internal/observability"
)

// NewRouter wires the widget routes. limiter may be nil to disable rate limiting on /lookup.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter, requestTimeout time.Duration) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")
	router.HandleFunc("/state", h.GetState).Methods("GET")
	router.HandleFunc("/connectivity", h.PutConnectivity).Methods("PUT")

	lookup := RateLimitMiddleware(limiter)(TimeoutMiddleware(requestTimeout)(http.HandlerFunc(h.PostLookup)))
	router.Handle("/lookup", lookup).Methods("POST")

	return router
}
