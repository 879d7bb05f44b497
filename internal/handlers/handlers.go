package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Brownie44l1/carprice-api/internal/catalog"
	"github.com/Brownie44l1/carprice-api/internal/estimate"
	"github.com/Brownie44l1/carprice-api/internal/imaging"
	"github.com/Brownie44l1/carprice-api/internal/model"
)

// FirstModelYear is the oldest year offered in the year selection list.
const FirstModelYear = 1930

type Estimator interface {
	Estimate(ctx context.Context, sub estimate.Submission) (*estimate.Result, error)
}

type ModelLister interface {
	All() []catalog.CarModel
	Makes() []catalog.MakeGroup
}

type Handler struct {
	estimator Estimator
	models    ModelLister
	maxUpload int64
	now       func() time.Time
}

func NewHandler(estimator Estimator, models ModelLister, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		estimator: estimator,
		models:    models,
		maxUpload: maxUpload,
		now:       time.Now,
	}
}

type imageResponse struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	DataURI string `json:"data_uri"`
}

type estimateResponse struct {
	Make          string         `json:"make"`
	Model         string         `json:"model"`
	Year          int            `json:"year"`
	Mileage       int            `json:"mileage"`
	PriceEstimate float64        `json:"price_estimate"`
	Image         *imageResponse `json:"normalized_image"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Models lists the selectable make/models. ?grouped=true groups them by make.
func (h *Handler) Models(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	if grouped, _ := strconv.ParseBool(r.URL.Query().Get("grouped")); grouped {
		writeJSON(w, http.StatusOK, h.models.Makes())
		return
	}
	writeJSON(w, http.StatusOK, h.models.All())
}

// Years lists selectable model years, newest first.
func (h *Handler) Years(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}
	current := h.now().Year()
	years := make([]int, 0, current-FirstModelYear+1)
	for y := current; y >= FirstModelYear; y-- {
		years = append(years, y)
	}
	writeJSON(w, http.StatusOK, years)
}

// Estimate accepts a multipart or urlencoded form with year, mileage,
// model_id and an optional image file.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(h.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "Failed to parse form", "")
		return
	}

	sub, err := h.bindSubmission(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	res, err := h.estimator.Estimate(r.Context(), sub)
	if err != nil {
		status, msg := classify(err)
		var se *estimate.StageError
		stage := ""
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		if status >= http.StatusInternalServerError {
			slog.Error("Estimate error", "error", err)
		}
		writeError(w, status, msg, stage)
		return
	}

	resp := estimateResponse{
		Make:          res.Make,
		Model:         res.Model,
		Year:          sub.Year,
		Mileage:       sub.Mileage,
		PriceEstimate: res.Price,
	}
	if res.Image != nil {
		resp.Image = &imageResponse{
			Width:   res.Image.Width,
			Height:  res.Image.Height,
			DataURI: res.Image.DataURI(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) bindSubmission(r *http.Request) (estimate.Submission, error) {
	var sub estimate.Submission
	var err error

	if sub.Year, err = formInt(r, "year"); err != nil {
		return sub, err
	}
	if sub.Mileage, err = formInt(r, "mileage"); err != nil {
		return sub, err
	}
	if sub.Mileage < 0 {
		return sub, errors.New("mileage must not be negative")
	}
	if sub.ModelID, err = formInt(r, "model_id"); err != nil {
		return sub, err
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return sub, nil
	}
	if err != nil {
		return sub, fmt.Errorf("failed to read image: %w", err)
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		return sub, fmt.Errorf("image too large (max %d bytes)", h.maxUpload)
	}

	sub.Image, err = io.ReadAll(file)
	if err != nil {
		return sub, fmt.Errorf("failed to read image: %w", err)
	}
	slog.Debug("Received image", "filename", header.Filename, "size", len(sub.Image))

	return sub, nil
}

func formInt(r *http.Request, key string) (int, error) {
	raw := r.FormValue(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "Unknown car model selection"
	case errors.Is(err, imaging.ErrDecode), errors.Is(err, imaging.ErrEncode):
		return http.StatusUnprocessableEntity, "Image could not be processed"
	case errors.Is(err, model.ErrPrediction):
		return http.StatusInternalServerError, "Prediction failed"
	default:
		return http.StatusInternalServerError, "Estimate failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, stage string) {
	writeJSON(w, status, errorResponse{Error: msg, Stage: stage})
}
