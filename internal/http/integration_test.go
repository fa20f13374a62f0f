//go:build integration
// +build integration

package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/weather-widget/internal/controller"
	"github.com/kjstillabower/weather-widget/internal/netmon"
	"github.com/kjstillabower/weather-widget/internal/observability"
	"github.com/kjstillabower/weather-widget/internal/testhelpers"
)

// TestIntegration_LookupThenOffline drives the router against the live API, then serves
// the same city from the slot after going offline. INTEGRATION_SLOT_BACKEND selects the store.
func TestIntegration_LookupThenOffline(t *testing.T) {
	cfg := testhelpers.GetIntegrationConfig(t)
	logger, err := observability.NewLogger("", "serve")
	if err != nil {
		t.Fatal(err)
	}
	wc := testhelpers.SetupIntegrationClient(t, cfg)
	store := testhelpers.SetupIntegrationStore(t, cfg)
	monitor := netmon.New(true, logger)
	ctrl := controller.New(context.Background(), wc, store, monitor, logger)
	defer ctrl.Close()
	router := NewRouter(NewHandler(ctrl, monitor, logger, nil), logger, nil, 15*time.Second)

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, strings.NewReader(body)))
		return w
	}

	w := serve("POST", "/lookup", `{"city":"London"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"phase":"success"`) {
		t.Fatalf("live lookup: %d %s", w.Code, w.Body.String())
	}

	serve("PUT", "/connectivity", `{"online":false}`)
	w = serve("POST", "/lookup", `{"city":"Paris"}`)
	if !strings.Contains(w.Body.String(), "offline, showing cached data") {
		t.Errorf("offline lookup: %s", w.Body.String())
	}
}

// TestIntegration_SlotSurvivesRestart looks up a city, then starts a fresh controller
// offline on the same store and expects the record back.
func TestIntegration_SlotSurvivesRestart(t *testing.T) {
	cfg := testhelpers.GetIntegrationConfig(t)
	wc := testhelpers.SetupIntegrationClient(t, cfg)
	store := testhelpers.SetupIntegrationStore(t, cfg)

	first := controller.New(context.Background(), wc, store, netmon.New(true, nil), nil)
	if st := first.RequestWeather(context.Background(), "Tokyo"); st.Phase != controller.PhaseSuccess {
		t.Fatalf("live lookup: phase = %v, err = %v", st.Phase, st.Err)
	}
	first.Close()

	second := controller.New(context.Background(), wc, store, netmon.New(false, nil), nil)
	defer second.Close()
	st := second.RequestWeather(context.Background(), "anything")
	if !st.FromCache() || st.Record == nil || st.Record.Location != "Tokyo" {
		t.Errorf("restart lookup = %+v, want cached Tokyo", st)
	}
}
