// Package api exposes the scan workflow, record history, reports and
// marketing studio over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/khatalens/internal/api/middleware"
	"github.com/dvloznov/khatalens/internal/domain"
	"github.com/dvloznov/khatalens/internal/reports"
	"github.com/dvloznov/khatalens/internal/workflow"
)

// maxImageBytes caps uploaded image payloads.
const maxImageBytes = 10 << 20

// PosterGenerator is the marketing client seam.
type PosterGenerator interface {
	GeneratePoster(ctx context.Context, topic string, shop domain.ShopType) (domain.Poster, error)
}

// Handler bundles dependencies for the HTTP API.
type Handler struct {
	sessions  *SessionManager
	marketing PosterGenerator
	secret    string
	log       zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(sessions *SessionManager, marketing PosterGenerator, secret string, log zerolog.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		marketing: marketing,
		secret:    secret,
		log:       log,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.log))
	r.Use(middleware.Recovery(h.log))
	r.Use(middleware.CORS)

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.login)

		r.Group(func(pr chi.Router) {
			pr.Use(h.authMiddleware)

			pr.Post("/auth/logout", h.logout)
			pr.Get("/session", h.session)

			pr.Route("/scan", func(r chi.Router) {
				r.Post("/", h.startScan)
				r.Post("/image", h.uploadImage)
				r.Post("/cancel", h.cancelScan)
				r.Put("/items", h.confirmItems)
				r.Post("/accept-tax", h.acceptTax)
				r.Post("/save", h.saveRecord)
			})

			pr.Get("/records", h.listRecords)

			pr.Route("/reports", func(r chi.Router) {
				r.Get("/summary", h.reportSummary)
				r.Get("/csv", h.reportCSV)
				r.Get("/pdf", h.reportPDF)
			})

			pr.Post("/marketing/poster", h.generatePoster)
			pr.Put("/settings/shop-type", h.setShopType)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// controller resolves the session controller for the request, writing the
// error response itself when there is none.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*workflow.Controller, bool) {
	ctrl, err := h.sessions.Get(usernameFrom(r))
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Session expired, log in again")
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.sessions.Login(req.Username, req.Password)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	token, err := h.issueToken(req.Username)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to sign session token")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"profile": profile,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(usernameFrom(r))
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) startScan(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.NewScan(); err != nil {
		middleware.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ctrl.Snapshot())
}

// uploadImage accepts the raw image in the request body and starts the
// processing pipeline in the background. Clients poll GET /api/session (or
// just wait) for the Verifying step. No timeout is applied to the extraction
// call; a hung remote call leaves the session in Processing.
func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	mediaType := r.Header.Get("Content-Type")
	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Image payload exceeds the 10MB limit")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read image payload")
		return
	}
	if len(image) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Image payload is empty")
		return
	}
	if ctrl.Step() != workflow.StepAwaitingUpload {
		middleware.WriteError(w, http.StatusConflict, fmt.Sprintf("cannot process an image from step %s", ctrl.Step()))
		return
	}

	// The pipeline outlives the HTTP request.
	go func() {
		if err := ctrl.SubmitImage(context.Background(), image, mediaType, nil); err != nil {
			h.log.Error().Err(err).Msg("Processing failed to start")
		}
	}()

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

func (h *Handler) cancelScan(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.Cancel()
	middleware.WriteJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) confirmItems(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var items []domain.LineItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid item list")
		return
	}

	breakdown, err := ctrl.ConfirmItems(items)
	if err != nil {
		middleware.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) acceptTax(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	if err := ctrl.AcceptTax(); err != nil {
		middleware.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ctrl.Snapshot())
}

func (h *Handler) saveRecord(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	history, err := ctrl.Save()
	if err != nil {
		middleware.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": history,
		"count":   len(history),
	})
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	history := ctrl.History()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": history,
		"count":   len(history),
	})
}

func (h *Handler) reportSummary(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reports.Summarize(ctrl.History(), time.Now()))
}

func (h *Handler) reportCSV(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf("KhataLens_Report_%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := reports.WriteCSV(w, ctrl.History()); err != nil {
		h.log.Error().Err(err).Msg("Failed to write CSV report")
	}
}

func (h *Handler) reportPDF(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	shop := domain.ShopGeneral
	if profile := ctrl.Profile(); profile != nil {
		shop = profile.ShopType
	}

	filename := fmt.Sprintf("KhataLens_Report_%s.pdf", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := reports.WritePDF(w, ctrl.History(), shop, time.Now()); err != nil {
		h.log.Error().Err(err).Msg("Failed to write PDF report")
	}
}

func (h *Handler) generatePoster(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req struct {
		Topic string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	shop := domain.ShopGeneral
	if profile := ctrl.Profile(); profile != nil {
		shop = profile.ShopType
	}

	poster, err := h.marketing.GeneratePoster(r.Context(), req.Topic, shop)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Topic is required")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, poster)
}

func (h *Handler) setShopType(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}

	var req struct {
		ShopType domain.ShopType `json:"shop_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ctrl.SetShopType(req.ShopType); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ctrl.Profile())
}
