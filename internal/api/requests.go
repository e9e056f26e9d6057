package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JakeFAU/webcapture/internal/capture"
	"github.com/JakeFAU/webcapture/internal/status"
)

type captureRequest struct {
	URL         string   `json:"url" validate:"required,max=2048"`
	DeviceTypes []string `json:"device_types" validate:"required,max=16,dive,max=64"`
	FullPage    *bool    `json:"capture_full_page"`
	Dynamic     *bool    `json:"capture_dynamic_elements"`
}

type urlValidateRequest struct {
	URL string `json:"url" validate:"required"`
}

type urlValidateResponse struct {
	URL           string `json:"url"`
	IsValid       bool   `json:"is_valid"`
	NormalizedURL string `json:"normalized_url"`
	Domain        string `json:"domain"`
}

type deviceProfileRequest struct {
	Name      string `json:"name" validate:"required,max=64"`
	Width     int    `json:"width" validate:"required,min=1,max=10000"`
	Height    int    `json:"height" validate:"required,min=1,max=10000"`
	IsDefault bool   `json:"is_default"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and checks its tags. Problems
// come back as *capture.ValidationError.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &capture.ValidationError{Reason: "invalid JSON"}
	}
	if err := s.validate.Struct(dst); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &capture.ValidationError{Reason: err.Error()}
	}
	fe := verrs[0]
	field := fe.Field()
	if ns := fe.Namespace(); strings.Contains(ns, ".") {
		field = ns[strings.Index(ns, ".")+1:]
	}
	reason := fe.Tag()
	if fe.Param() != "" {
		reason = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
	}
	return &capture.ValidationError{Field: field, Reason: "failed " + reason}
}

// parseListFilter reads skip, limit and website_id. Limits above the cap
// are clamped.
func parseListFilter(r *http.Request) (status.ListFilter, error) {
	q := r.URL.Query()
	filter := status.ListFilter{
		WebsiteID: strings.TrimSpace(q.Get("website_id")),
		Limit:     status.DefaultLimit,
	}
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return status.ListFilter{}, &capture.ValidationError{Field: "limit", Reason: "must be a positive integer"}
		}
		if val > status.MaxLimit {
			val = status.MaxLimit
		}
		filter.Limit = val
	}
	if skipStr := q.Get("skip"); skipStr != "" {
		val, err := strconv.Atoi(skipStr)
		if err != nil || val < 0 {
			return status.ListFilter{}, &capture.ValidationError{Field: "skip", Reason: "must be a non-negative integer"}
		}
		filter.Skip = val
	}
	return filter, nil
}
