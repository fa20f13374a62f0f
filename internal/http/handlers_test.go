package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-widget/internal/client"
	"github.com/kjstillabower/weather-widget/internal/controller"
	"github.com/kjstillabower/weather-widget/internal/lifecycle"
	"github.com/kjstillabower/weather-widget/internal/models"
	"github.com/kjstillabower/weather-widget/internal/netmon"
	"github.com/kjstillabower/weather-widget/internal/slot"
)

type mockWeatherClient struct {
	weather models.WeatherRecord
	err     error
	block   chan struct{} // if set, GetCurrentWeather blocks until ctx.Done() or close
	calls   int
}

func (m *mockWeatherClient) GetCurrentWeather(ctx context.Context, city string) (models.WeatherRecord, error) {
	m.calls++
	if m.block != nil {
		select {
		case <-ctx.Done():
			return models.WeatherRecord{}, ctx.Err()
		case <-m.block:
		}
	}
	return m.weather, m.err
}

var london = models.WeatherRecord{
	Location:      "London",
	Country:       "GB",
	Temperature:   15.4,
	Humidity:      70,
	CloudCoverage: 80,
	WindSpeed:     3.2,
	Conditions:    "broken clouds",
	Icon:          "04d",
}

type testEnv struct {
	router  *mux.Router
	handler *Handler
	ctrl    *controller.Controller
	monitor *netmon.Monitor
	store   *slot.MemoryStore
}

func newTestEnv(t *testing.T, wc *mockWeatherClient, online bool, logger *zap.Logger) *testEnv {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	store := slot.NewMemoryStore()
	monitor := netmon.New(online, logger)
	ctrl := controller.New(context.Background(), wc, store, monitor, logger)
	t.Cleanup(ctrl.Close)
	h := NewHandler(ctrl, monitor, logger, nil)
	return &testEnv{
		router:  NewRouter(h, logger, nil, 5*time.Second),
		handler: h,
		ctrl:    ctrl,
		monitor: monitor,
		store:   store,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var resp stateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v; body=%s", err, w.Body.String())
	}
	return resp
}

// TestHandler_PostLookup_Success verifies a live lookup returns the rendered record.
func TestHandler_PostLookup_Success(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{weather: london}, true, nil)

	w := env.do(t, "POST", "/lookup", `{"city":"London"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	resp := decodeState(t, w)
	if resp.Phase != "success" {
		t.Errorf("phase = %q, want success", resp.Phase)
	}
	if resp.Weather == nil {
		t.Fatal("weather missing")
	}
	if resp.Weather.DisplayName != "London, GB" || resp.Weather.TemperatureText != "15°C" {
		t.Errorf("weather = %+v", resp.Weather)
	}
	if resp.Weather.RainChance != 64 {
		t.Errorf("rainChance = %d, want 64", resp.Weather.RainChance)
	}
	if resp.Weather.IconURL != "https://openweathermap.org/img/wn/04d@2x.png" {
		t.Errorf("iconUrl = %q", resp.Weather.IconURL)
	}
	if resp.Message != "" || resp.CachedAt != "" {
		t.Errorf("message/cachedAt = %q/%q, want empty", resp.Message, resp.CachedAt)
	}
	if _, ok, _ := env.store.Load(context.Background()); !ok {
		t.Error("slot not written after success")
	}
}

// TestHandler_PostLookup_EmptyCity verifies blank input is a 400 without a fetch.
func TestHandler_PostLookup_EmptyCity(t *testing.T) {
	wc := &mockWeatherClient{weather: london}
	env := newTestEnv(t, wc, true, nil)

	w := env.do(t, "POST", "/lookup", `{"city":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if resp := decodeState(t, w); resp.Message != "city name required" {
		t.Errorf("message = %q", resp.Message)
	}
	if wc.calls != 0 {
		t.Errorf("client calls = %d, want 0", wc.calls)
	}
}

// TestHandler_PostLookup_InvalidBody verifies malformed JSON is rejected.
func TestHandler_PostLookup_InvalidBody(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{}, true, nil)

	for _, body := range []string{"", "not json", `{"city": 5}`, `{"town":"London"}`} {
		w := env.do(t, "POST", "/lookup", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
		if !strings.Contains(w.Body.String(), "INVALID_BODY") {
			t.Errorf("body %q: response %s, want INVALID_BODY", body, w.Body.String())
		}
	}
}

// TestHandler_PostLookup_FetchFailed verifies the generic message and the exposed category.
func TestHandler_PostLookup_FetchFailed(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{err: client.ErrInvalidAPIKey}, true, nil)

	w := env.do(t, "POST", "/lookup", `{"city":"London"}`)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	resp := decodeState(t, w)
	if resp.Phase != "error" || resp.Message != "city not found or invalid" {
		t.Errorf("phase/message = %q/%q", resp.Phase, resp.Message)
	}
	if resp.ErrorCategory != string(client.ErrorCategoryInvalidAPIKey) {
		t.Errorf("errorCategory = %q", resp.ErrorCategory)
	}
	if resp.Weather != nil {
		t.Errorf("weather = %+v, want none", resp.Weather)
	}
}

// TestHandler_PostLookup_TimeoutMiddleware verifies the request deadline reaches the client.
func TestHandler_PostLookup_TimeoutMiddleware(t *testing.T) {
	wc := &mockWeatherClient{block: make(chan struct{})}
	store := slot.NewMemoryStore()
	monitor := netmon.New(true, nil)
	ctrl := controller.New(context.Background(), wc, store, monitor, nil)
	defer ctrl.Close()
	router := NewRouter(NewHandler(ctrl, monitor, nil, nil), zap.NewNop(), nil, 20*time.Millisecond)

	req := httptest.NewRequest("POST", "/lookup", strings.NewReader(`{"city":"London"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := decodeState(t, w)
	if resp.ErrorCategory != string(client.ErrorCategoryTimeout) {
		t.Errorf("errorCategory = %q, want timeout", resp.ErrorCategory)
	}
}

// TestHandler_Connectivity_OfflineFallback verifies the host signal switches lookups to the slot.
func TestHandler_Connectivity_OfflineFallback(t *testing.T) {
	wc := &mockWeatherClient{weather: london}
	env := newTestEnv(t, wc, true, nil)

	env.do(t, "POST", "/lookup", `{"city":"London"}`)

	w := env.do(t, "PUT", "/connectivity", `{"online":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /connectivity status = %d", w.Code)
	}
	if resp := decodeState(t, w); resp.Online {
		t.Error("online = true after reporting offline")
	}

	w = env.do(t, "POST", "/lookup", `{"city":"Tokyo"}`)
	resp := decodeState(t, w)
	if wc.calls != 1 {
		t.Errorf("client calls = %d, want 1", wc.calls)
	}
	if resp.Weather == nil || resp.Weather.Location != "London" {
		t.Fatalf("weather = %+v, want cached London", resp.Weather)
	}
	if resp.CachedAt == "" {
		t.Error("cachedAt empty for cached record")
	}
	if !strings.HasPrefix(resp.Message, "offline, showing cached data (cached at ") {
		t.Errorf("message = %q", resp.Message)
	}
}

// TestHandler_Connectivity_OfflineNoCache verifies the empty-slot offline message.
func TestHandler_Connectivity_OfflineNoCache(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{weather: london}, false, nil)

	resp := decodeState(t, env.do(t, "POST", "/lookup", `{"city":"London"}`))
	if resp.Message != "offline, no cached data available" || resp.Weather != nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandler_PutConnectivity_InvalidBody(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{}, true, nil)

	for _, body := range []string{"", `{}`, `{"online":"no"}`} {
		w := env.do(t, "PUT", "/connectivity", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
	if !env.monitor.IsOnline() {
		t.Error("monitor changed by rejected request")
	}
}

func TestHandler_GetState(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{weather: london}, true, nil)

	resp := decodeState(t, env.do(t, "GET", "/state", ""))
	if resp.Phase != "idle" || resp.Weather != nil || !resp.Online {
		t.Errorf("initial state = %+v", resp)
	}

	env.do(t, "POST", "/lookup", `{"city":"London"}`)
	resp = decodeState(t, env.do(t, "GET", "/state", ""))
	if resp.Phase != "success" || resp.Input != "London" || resp.RequestID != 1 {
		t.Errorf("state after lookup = %+v", resp)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, &mockWeatherClient{}, true, nil)

	if w := env.do(t, "GET", "/lookup", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /lookup status = %d, want 405", w.Code)
	}
}

func TestHandler_GetHealth(t *testing.T) {
	lifecycle.Set(lifecycle.Serving)
	env := newTestEnv(t, &mockWeatherClient{}, true, nil)

	w := env.do(t, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" || body["online"] != true || body["cached"] != false {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestHandler_GetHealth_SlotPing(t *testing.T) {
	lifecycle.Set(lifecycle.Serving)
	store := slot.NewMemoryStore()
	monitor := netmon.New(true, nil)
	ctrl := controller.New(context.Background(), &mockWeatherClient{}, store, monitor, nil)
	defer ctrl.Close()

	h := NewHandler(ctrl, monitor, nil, func() error { return context.DeadlineExceeded })
	w := httptest.NewRecorder()
	h.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

	if !strings.Contains(w.Body.String(), `"slot":"unhealthy"`) {
		t.Errorf("body = %s, want slot unhealthy", w.Body.String())
	}
}

// TestHandler_GetHealth_ShuttingDown verifies the drain status and the transition log.
func TestHandler_GetHealth_ShuttingDown(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	env := newTestEnv(t, &mockWeatherClient{}, true, zap.New(core))
	defer lifecycle.Set(lifecycle.Serving)

	lifecycle.Set(lifecycle.Serving)
	env.do(t, "GET", "/health", "")
	lifecycle.Set(lifecycle.Draining)
	w := env.do(t, "GET", "/health", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "shutting-down") {
		t.Errorf("body = %s", w.Body.String())
	}
	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["current_status"]; got != "shutting-down" {
		t.Errorf("current_status = %v", got)
	}
}

func TestHandler_LogsPhaseTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	env := newTestEnv(t, &mockWeatherClient{weather: london}, true, zap.New(core))

	env.do(t, "POST", "/lookup", `{"city":"London"}`)
	env.do(t, "POST", "/lookup", `{"city":"  "}`)

	var got []string
	for _, e := range logs.FilterMessage("widget phase transition").All() {
		got = append(got, e.ContextMap()["current_phase"].(string))
	}
	want := []string{"loading", "success", "error"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("phase transitions = %v, want %v", got, want)
	}
}
