package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/webcapture/internal/capture"
)

func (s *Server) listDeviceProfiles(w http.ResponseWriter, r *http.Request) {
	s.writeDeviceProfiles(w, r, false)
}

func (s *Server) listDefaultDeviceProfiles(w http.ResponseWriter, r *http.Request) {
	s.writeDeviceProfiles(w, r, true)
}

func (s *Server) writeDeviceProfiles(w http.ResponseWriter, r *http.Request, defaultsOnly bool) {
	profiles, err := s.store.ListDeviceProfiles(r.Context(), defaultsOnly)
	if err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// createDeviceProfile handles POST /device-profiles. Names are unique; a
// duplicate is a 409.
func (s *Server) createDeviceProfile(w http.ResponseWriter, r *http.Request) {
	var req deviceProfileRequest
	if err := s.decodeAndValidate(w, r, &req); err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	id, err := s.ids.NewID()
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("generate profile id: %w", err), "")
		return
	}
	profile := capture.DeviceProfile{
		ID:        id,
		Name:      req.Name,
		Width:     req.Width,
		Height:    req.Height,
		IsDefault: req.IsDefault,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateDeviceProfile(r.Context(), profile); err != nil {
		s.writeServiceError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) listPageScreenshots(w http.ResponseWriter, r *http.Request) {
	shots, err := s.status.PageScreenshots(r.Context(), chi.URLParam(r, "page_id"))
	if err != nil {
		s.writeServiceError(w, r, err, "page not found")
		return
	}
	writeJSON(w, http.StatusOK, shots)
}
