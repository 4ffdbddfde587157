package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scopecfg/internal/repository/sqlite"
	"scopecfg/internal/service"
	"scopecfg/internal/units"
)

const testSetupJSON = `{
  "info": {"name": "susceptometer", "timestamp_format": "2006-01-02_15:04:05"},
  "instruments": {
    "daq": {
      "name": "Dev1",
      "rate": "1 MHz",
      "channels": {
        "analog_inputs": {"x": 0, "y": 1, "z": 2, "MAG": 3, "CAP": 4},
        "analog_outputs": {"x": 0, "y": 1, "z": 2}
      }
    },
    "scanner": {
      "name": "benders",
      "constants": {"x": "2 um/V", "y": "2 um/V", "z": "0.3 um/V"},
      "voltage_limits": {
        "unit": "V",
        "RT": {"x": ["-2 V", "2 V"], "y": ["-2 V", "2 V"], "z": ["-2 V", "2 V"]},
        "LT": {"x": ["-10 V", "10 V"], "y": ["-10 V", "10 V"], "z": ["-10 V", "10 V"]}
      },
      "voltage_retract": {"RT": "-2 V", "LT": "-10 V"},
      "speed": {"value": "2 V/s"},
      "cantilever_calibration": "4.2 fF/V"
    },
    "atto": {
      "name": "atto",
      "address": "ASRL1::INSTR",
      "axes": {"x": 1, "y": 2, "z": 3},
      "voltage_limits": {
        "RT": {"x": "25 V", "y": "25 V", "z": "25 V"},
        "LT": {"x": "60 V", "y": "60 V", "z": "60 V"}
      }
    },
    "lockins": {
      "CAP": {"model": "SR830", "address": "GPIB0::2::INSTR"}
    }
  },
  "SQUID": {"name": "squid", "type": "susceptometer", "modulation_width": "0.1 V/Phi0"}
}`

const testMeasurementsJSON = `{
  "td_cap": {
    "fname": "td",
    "dV": "0.1 V",
    "range": ["-1 V", "1 V"],
    "channels": {
      "CAP": {
        "lockin": {"name": "CAP", "amplitude": "1 V"},
        "label": "Capacitance",
        "gain": 1,
        "unit": "fF"
      }
    }
  }
}`

func newTestServer(t *testing.T) (*httptest.Server, *service.ConfigService) {
	t.Helper()

	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := service.NewConfigService(repo, units.Default(), service.NewEventBus())
	h := NewConfigHandler(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/setup", h.GetSetup)
	mux.HandleFunc("POST /api/setup", h.ImportSetup)
	mux.HandleFunc("GET /api/setup/instruments", h.ListInstruments)
	mux.HandleFunc("GET /api/setup/instruments/{name...}", h.GetInstrument)
	mux.HandleFunc("GET /api/measurements", h.GetMeasurements)
	mux.HandleFunc("POST /api/measurements", h.ImportMeasurements)
	mux.HandleFunc("GET /api/experiments", h.ListExperiments)
	mux.HandleFunc("GET /api/experiments/{name}", h.GetExperiment)
	mux.HandleFunc("GET /api/experiments/{name}/prefactors", h.GetPrefactors)
	mux.HandleFunc("GET /api/regime", h.GetRegime)
	mux.HandleFunc("PUT /api/regime", h.SetRegime)
	mux.HandleFunc("GET /api/limits", h.GetLimits)
	mux.HandleFunc("GET /api/validation", h.GetValidation)

	srv := httptest.NewServer(Chain(mux, Recover, CORS, Logger))
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, respBody
}

func TestSetupLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	// Nothing loaded yet
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/setup", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET before import = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/setup?name=susceptometer", testSetupJSON)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/setup", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET after import = %d", resp.StatusCode)
	}
	var setup map[string]json.RawMessage
	if err := json.Unmarshal(body, &setup); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	for _, key := range []string{"info", "instruments", "SQUID"} {
		if _, ok := setup[key]; !ok {
			t.Errorf("response is missing %q", key)
		}
	}
}

func TestImportRejectsInvalidSetup(t *testing.T) {
	srv, _ := newTestServer(t)

	bad := strings.Replace(testSetupJSON, `"z": ["-2 V", "2 V"]`, `"z": ["2 V", "-2 V"]`, 1)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/setup?name=x", bad)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Report == nil || len(errResp.Report.Problems) == 0 {
		t.Error("rejection response must carry the validation report")
	}
}

func TestInstrumentLookup(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/setup?name=s", testSetupJSON)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/setup/instruments", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list = %d", resp.StatusCode)
	}
	var names []string
	if err := json.Unmarshal(body, &names); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, n := range names {
		if n == "lockins/CAP" {
			found = true
		}
	}
	if !found {
		t.Errorf("names = %v, want lockins/CAP listed", names)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/setup/instruments/lockins/CAP", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get lockin = %d: %s", resp.StatusCode, body)
	}
	var lockin struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(body, &lockin); err != nil {
		t.Fatal(err)
	}
	if lockin.Address != "GPIB0::2::INSTR" {
		t.Errorf("address = %q", lockin.Address)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/setup/instruments/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown instrument = %d", resp.StatusCode)
	}
}

func TestRegimeAndLimits(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/setup?name=s", testSetupJSON)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/regime", `{"regime": "LT"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set regime = %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/limits", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("limits = %d", resp.StatusCode)
	}
	var limits struct {
		Regime  string `json:"regime"`
		Retract string `json:"retract"`
	}
	if err := json.Unmarshal(body, &limits); err != nil {
		t.Fatal(err)
	}
	if limits.Regime != "LT" {
		t.Errorf("regime = %q", limits.Regime)
	}
	if limits.Retract != "-10 V" {
		t.Errorf("retract = %q", limits.Retract)
	}

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/regime", `{"regime": "cryo"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad regime = %d", resp.StatusCode)
	}
}

func TestPrefactorsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/setup?name=s", testSetupJSON)
	doJSON(t, http.MethodPost, srv.URL+"/api/measurements?name=m", testMeasurementsJSON)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/experiments/td_cap/prefactors", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prefactors = %d: %s", resp.StatusCode, body)
	}
	var pf map[string]struct {
		Value float64 `json:"value"`
		Unit  string  `json:"unit"`
	}
	if err := json.Unmarshal(body, &pf); err != nil {
		t.Fatal(err)
	}
	got, ok := pf["CAP"]
	if !ok {
		t.Fatal("no CAP prefactor")
	}
	if got.Value != 4.2 || got.Unit != "fF/V" {
		t.Errorf("CAP prefactor = %+v", got)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/experiments/missing/prefactors", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing preset = %d", resp.StatusCode)
	}
}

func TestValidationEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/setup?name=s", testSetupJSON)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/validation", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validation = %d", resp.StatusCode)
	}
	var state struct {
		Setup *struct {
			Problems []interface{} `json:"problems"`
		} `json:"setup"`
	}
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatal(err)
	}
	if state.Setup == nil {
		t.Fatal("validation state has no setup report")
	}
	if len(state.Setup.Problems) != 0 {
		t.Errorf("unexpected problems: %v", state.Setup.Problems)
	}
}
