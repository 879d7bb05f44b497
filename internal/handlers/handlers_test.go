package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Brownie44l1/carprice-api/internal/catalog"
	"github.com/Brownie44l1/carprice-api/internal/estimate"
	"github.com/Brownie44l1/carprice-api/internal/imaging"
	"github.com/Brownie44l1/carprice-api/internal/metrics"
	"github.com/Brownie44l1/carprice-api/internal/model"
)

const testManifest = `{
  "format": "linear",
  "features": [
    {"name": "year", "kind": "numeric"},
    {"name": "mileage", "kind": "numeric"},
    {"name": "make", "kind": "categorical", "categories": ["Toyota"]}
  ],
  "intercept": -1000000,
  "weights": [500, -0.1, 2500]
}`

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat, err := catalog.New([]catalog.CarModel{
		{ID: 5, Make: "Toyota", Model: "Corolla"},
		{ID: 8, Make: "Lada", Model: "Niva"},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	manifest := filepath.Join(t.TempDir(), "artifact.json")
	if err := os.WriteFile(manifest, []byte(testManifest), 0644); err != nil {
		t.Fatal(err)
	}
	predictor, err := model.Load(manifest, model.Options{})
	if err != nil {
		t.Fatalf("model.Load: %v", err)
	}
	t.Cleanup(func() { predictor.Close() })

	rec := metrics.New()
	svc := estimate.NewService(cat, imaging.NewNormalizer(imaging.Options{}), predictor, rec)

	h := NewHandler(svc, cat, 1<<20)
	h.now = func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) }

	server := httptest.NewServer(h.Routes(rec))
	t.Cleanup(server.Close)
	return server
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "car.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(image)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestEstimateWithoutImage(t *testing.T) {
	server := setupServer(t)

	form := url.Values{"year": {"2020"}, "mileage": {"15000"}, "model_id": {"5"}}
	resp, err := http.PostForm(server.URL+"/api/estimate", form)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	got := decode[estimateResponse](t, resp)
	if got.Make != "Toyota" || got.Model != "Corolla" {
		t.Errorf("make/model = %s %s", got.Make, got.Model)
	}
	if got.PriceEstimate != 11000 {
		t.Errorf("price = %v, want 11000", got.PriceEstimate)
	}
	if got.Image != nil {
		t.Errorf("normalized_image = %+v, want null", got.Image)
	}
}

func TestEstimateWithImage(t *testing.T) {
	server := setupServer(t)

	body, ct := multipartBody(t, map[string]string{"year": "2020", "mileage": "0", "model_id": "5"}, pngBytes(t, 300, 600))
	resp, err := http.Post(server.URL+"/api/estimate", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	got := decode[estimateResponse](t, resp)
	if got.Image == nil {
		t.Fatal("normalized_image missing")
	}
	if got.Image.Width != 240 || got.Image.Height != 480 {
		t.Errorf("image = %dx%d, want 240x480", got.Image.Width, got.Image.Height)
	}
	if !strings.HasPrefix(got.Image.DataURI, "data:image/jpeg;base64,") {
		t.Errorf("data_uri prefix = %.30s", got.Image.DataURI)
	}
}

func TestEstimateErrors(t *testing.T) {
	server := setupServer(t)

	tests := []struct {
		name      string
		fields    map[string]string
		image     []byte
		wantCode  int
		wantStage string
	}{
		{"unknown model", map[string]string{"year": "2020", "mileage": "1", "model_id": "6"}, nil, http.StatusNotFound, "validated"},
		{"corrupt image", map[string]string{"year": "2020", "mileage": "1", "model_id": "5"}, []byte("garbage"), http.StatusUnprocessableEntity, "image_normalized"},
		{"make unknown to model", map[string]string{"year": "2020", "mileage": "1", "model_id": "8"}, nil, http.StatusInternalServerError, "predicted"},
		{"missing year", map[string]string{"mileage": "1", "model_id": "5"}, nil, http.StatusBadRequest, ""},
		{"negative mileage", map[string]string{"year": "2020", "mileage": "-4", "model_id": "5"}, nil, http.StatusBadRequest, ""},
		{"non-numeric id", map[string]string{"year": "2020", "mileage": "4", "model_id": "five"}, nil, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, tt.image)
			resp, err := http.Post(server.URL+"/api/estimate", ct, body)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			got := decode[errorResponse](t, resp)
			if got.Stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", got.Stage, tt.wantStage)
			}
			if got.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestEstimateRejectsGet(t *testing.T) {
	server := setupServer(t)
	resp, err := http.Get(server.URL + "/api/estimate")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestModelsAndYears(t *testing.T) {
	server := setupServer(t)

	resp, err := http.Get(server.URL + "/api/models")
	if err != nil {
		t.Fatal(err)
	}
	models := decode[[]catalog.CarModel](t, resp)
	if len(models) != 2 || models[0].ID != 5 {
		t.Errorf("models = %+v", models)
	}

	resp, err = http.Get(server.URL + "/api/models?grouped=true")
	if err != nil {
		t.Fatal(err)
	}
	groups := decode[[]catalog.MakeGroup](t, resp)
	if len(groups) != 2 || groups[0].Make != "Lada" {
		t.Errorf("groups = %+v", groups)
	}

	resp, err = http.Get(server.URL + "/api/years")
	if err != nil {
		t.Fatal(err)
	}
	years := decode[[]int](t, resp)
	if len(years) != 2026-1930+1 || years[0] != 2026 || years[len(years)-1] != 1930 {
		t.Errorf("years run %d..%d (%d entries)", years[0], years[len(years)-1], len(years))
	}
}

func TestHealthAndMetrics(t *testing.T) {
	server := setupServer(t)

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if got := decode[map[string]string](t, resp); got["status"] != "healthy" {
		t.Errorf("health = %v", got)
	}

	form := url.Values{"year": {"2020"}, "mileage": {"1"}, "model_id": {"404"}}
	resp, err = http.PostForm(server.URL+"/api/estimate", form)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`carprice_estimates_total{outcome="failed",stage="received"} 1`,
		`carprice_http_requests_total{method="GET",path="/health",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	server := setupServer(t)

	req, _ := http.NewRequest(http.MethodOptions, server.URL+"/api/estimate", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
