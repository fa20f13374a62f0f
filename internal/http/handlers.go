package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-widget/internal/client"
	"github.com/kjstillabower/weather-widget/internal/controller"
	"github.com/kjstillabower/weather-widget/internal/lifecycle"
	"github.com/kjstillabower/weather-widget/internal/models"
	"github.com/kjstillabower/weather-widget/internal/netmon"
	"github.com/kjstillabower/weather-widget/internal/observability"
)

// maxBodyBytes bounds request bodies; both JSON bodies here are a single field.
const maxBodyBytes = 4 << 10

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	ctrl    *controller.Controller
	monitor *netmon.Monitor
	logger  *zap.Logger
	// slotPing, when set, reports slot backend reachability on /health.
	slotPing func() error

	healthStatusMu   sync.Mutex
	healthStatusPrev string

	phaseMu   sync.Mutex
	phasePrev controller.Phase
	phaseID   uint64
}

// NewHandler returns a new Handler subscribed to ctrl's state changes. slotPing may be nil.
func NewHandler(ctrl *controller.Controller, monitor *netmon.Monitor, logger *zap.Logger, slotPing func() error) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		ctrl:      ctrl,
		monitor:   monitor,
		logger:    logger,
		slotPing:  slotPing,
		phasePrev: ctrl.State().Phase,
	}
	ctrl.Subscribe(h.logPhaseTransition)
	return h
}

// logPhaseTransition logs widget phase changes. Snapshots older than the last
// one logged are skipped; they can arrive late from a concurrent lookup.
func (h *Handler) logPhaseTransition(st controller.State) {
	h.phaseMu.Lock()
	defer h.phaseMu.Unlock()
	if st.RequestID < h.phaseID || st.Phase == h.phasePrev {
		return
	}
	fields := []zap.Field{
		zap.String("previous_phase", h.phasePrev.String()),
		zap.String("current_phase", st.Phase.String()),
		zap.Uint64("request_id", st.RequestID),
		zap.Bool("online", st.Online),
	}
	if msg := st.Message(); msg != "" {
		fields = append(fields, zap.String("message", msg))
	}
	h.logger.Debug("widget phase transition", fields...)
	h.phasePrev = st.Phase
	h.phaseID = st.RequestID
}

type weatherView struct {
	Location        string  `json:"location"`
	Country         string  `json:"country"`
	DisplayName     string  `json:"displayName"`
	Temperature     float64 `json:"temperature"`
	TemperatureText string  `json:"temperatureText"`
	Humidity        int     `json:"humidity"`
	CloudCoverage   int     `json:"cloudCoverage"`
	RainChance      int     `json:"rainChance"`
	WindSpeed       float64 `json:"windSpeed"`
	Conditions      string  `json:"conditions"`
	Icon            string  `json:"icon"`
	IconURL         string  `json:"iconUrl"`
}

type stateResponse struct {
	Phase     string       `json:"phase"`
	Input     string       `json:"input"`
	Message   string       `json:"message,omitempty"`
	Weather   *weatherView `json:"weather,omitempty"`
	CachedAt  string       `json:"cachedAt,omitempty"`
	Online    bool         `json:"online"`
	RequestID uint64       `json:"requestId"`
	// ErrorCategory is the classified fetch cause; the message stays generic.
	ErrorCategory string `json:"errorCategory,omitempty"`
}

func newWeatherView(r models.WeatherRecord) *weatherView {
	return &weatherView{
		Location:        r.Location,
		Country:         r.Country,
		DisplayName:     r.DisplayName(),
		Temperature:     r.Temperature,
		TemperatureText: r.FormatTemperature(),
		Humidity:        r.Humidity,
		CloudCoverage:   r.CloudCoverage,
		RainChance:      r.RainChance(),
		WindSpeed:       r.WindSpeed,
		Conditions:      r.Conditions,
		Icon:            r.Icon,
		IconURL:         r.IconURL(),
	}
}

func newStateResponse(st controller.State) stateResponse {
	resp := stateResponse{
		Phase:     st.Phase.String(),
		Input:     st.Input,
		Message:   st.Message(),
		Online:    st.Online,
		RequestID: st.RequestID,
	}
	if st.Record != nil {
		resp.Weather = newWeatherView(*st.Record)
	}
	if st.FromCache() {
		resp.CachedAt = st.CachedAt.UTC().Format(time.RFC3339)
	}
	if st.Cause != nil {
		resp.ErrorCategory = string(client.CategorizeError(st.Cause))
	}
	return resp
}

// PostLookup handles POST /lookup with body {"city": "..."}.
// The outcome, including fetch failures, is carried in the state body.
// Only input rejected before any lookup answers 400.
func (h *Handler) PostLookup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		City string `json:"city"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON {\"city\": string}")
		return
	}

	st := h.ctrl.RequestWeather(r.Context(), body.City)
	status := http.StatusOK
	if errors.Is(st.Err, controller.ErrCityRequired) || errors.Is(st.Err, controller.ErrCityInvalid) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, newStateResponse(st))
}

// GetState handles GET /state.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(h.ctrl.State()))
}

// PutConnectivity handles PUT /connectivity with body {"online": bool}, the host's
// connectivity signal.
func (h *Handler) PutConnectivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Online *bool `json:"online"`
	}
	if err := decodeBody(w, r, &body); err != nil || body.Online == nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON {\"online\": bool}")
		return
	}
	h.monitor.Report(*body.Online)
	writeJSON(w, http.StatusOK, newStateResponse(h.ctrl.State()))
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	phase := lifecycle.Current()
	status, statusCode := phase.Status(), http.StatusOK
	if phase == lifecycle.Draining {
		statusCode = http.StatusServiceUnavailable
	}

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", status))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if h.slotPing != nil {
		if err := h.slotPing(); err == nil {
			checks["slot"] = "healthy"
		} else {
			checks["slot"] = "unhealthy"
		}
	}
	_, cached := h.ctrl.Cached()
	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "weather-widget",
		"online":    h.monitor.IsOnline(),
		"cached":    cached,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes v as JSON with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response with code, message and the request's correlation id.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
