package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/capture"
	"github.com/JakeFAU/webcapture/internal/intake"
)

// submitCapture handles POST /captures/. It answers 202 with the pending job
// before any capture work starts.
func (s *Server) submitCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := s.decodeAndValidate(w, r, &req); err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	job, err := s.intake.Submit(r.Context(), intake.Request{
		URL:         req.URL,
		DeviceTypes: req.DeviceTypes,
		FullPage:    req.FullPage,
		Dynamic:     req.Dynamic,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) listCaptures(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	details, err := s.status.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) getCapture(w http.ResponseWriter, r *http.Request) {
	detail, err := s.status.Detail(r.Context(), chi.URLParam(r, "capture_id"))
	if err != nil {
		s.writeServiceError(w, r, err, "capture not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) getCaptureStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.status.Status(r.Context(), chi.URLParam(r, "capture_id"))
	if err != nil {
		s.writeServiceError(w, r, err, "capture not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getScreenshot(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, func(shot capture.Screenshot) string { return shot.Path })
}

func (s *Server) getThumbnail(w http.ResponseWriter, r *http.Request) {
	s.serveArtifact(w, r, func(shot capture.Screenshot) string { return shot.ThumbnailPath })
}

// serveArtifact streams the PNG that pick selects from the screenshot row.
func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, pick func(capture.Screenshot) string) {
	shot, err := s.store.GetScreenshot(r.Context(), chi.URLParam(r, "screenshot_id"))
	if err != nil {
		s.writeServiceError(w, r, err, "screenshot not found")
		return
	}
	data, err := s.blobs.GetObject(r.Context(), pick(shot))
	if err != nil {
		if errors.Is(err, capture.ErrNotFound) {
			s.logger.Warn("screenshot row references a missing blob",
				zap.String("screenshot_id", shot.ID),
				zap.String("path", pick(shot)),
			)
		}
		s.writeServiceError(w, r, err, "screenshot file not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("write screenshot failed", zap.Error(err))
	}
}

// validateURL handles POST /url/validate. Invalid URLs are a 200 with
// is_valid=false; the input is echoed as normalized_url.
func (s *Server) validateURL(w http.ResponseWriter, r *http.Request) {
	var req urlValidateRequest
	if err := s.decodeAndValidate(w, r, &req); err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	resp := urlValidateResponse{URL: req.URL, NormalizedURL: req.URL}
	if capture.ValidateURL(req.URL) {
		resp.IsValid = true
		resp.NormalizedURL = capture.NormalizeURL(req.URL)
		resp.Domain = capture.ExtractDomain(req.URL)
	}
	writeJSON(w, http.StatusOK, resp)
}
