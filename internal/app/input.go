package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"resort_hub/internal/domain"
)

// Number is a numeric input as the admin form sends it: a JSON number or text.
type Number struct {
	Raw string
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		n.Raw = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.Raw = strings.TrimSpace(s)
	default:
		var f json.Number
		if err := json.Unmarshal(b, &f); err != nil {
			return fmt.Errorf("expected number or numeric string, got %s", string(b))
		}
		n.Raw = f.String()
	}
	return nil
}

func (n Number) Present() bool { return n.Raw != "" }

func (n Number) float(field string) (*float64, error) {
	if !n.Present() {
		return nil, nil
	}
	f, err := strconv.ParseFloat(n.Raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, domain.Invalid(field, "%q is not a finite number", n.Raw)
	}
	return &f, nil
}

// ResortFields are the scalar resort fields. Absent or empty values are ignored.
type ResortFields struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Status      *string `json:"status"`
	Price       Number  `json:"price"`
	Lat         Number  `json:"lat"`
	Lng         Number  `json:"lng"`
}

type ResortInput struct {
	ResortFields
	Images []domain.MediaRef `json:"images"`
	Videos []domain.MediaRef `json:"videos"`
}

type ResortPatch struct {
	ResortFields
	NewImages     []domain.MediaRef `json:"newImages"`
	NewVideos     []domain.MediaRef `json:"newVideos"`
	RemovedImages []domain.MediaRef `json:"removedImages"`
	RemovedVideos []domain.MediaRef `json:"removedVideos"`
}

func (p ResortPatch) change() domain.MediaChange {
	return domain.MediaChange{
		RemoveImages: nonZero(p.RemovedImages),
		RemoveVideos: nonZero(p.RemovedVideos),
		AddImages:    nonZero(p.NewImages),
		AddVideos:    nonZero(p.NewVideos),
	}
}

// scalars is the validated form of ResortFields.
type scalars struct {
	name, description, location *string
	status                      *domain.ResortStatus
	price, lat, lng             *float64
}

func (s scalars) any() bool {
	return s.name != nil || s.description != nil || s.location != nil ||
		s.status != nil || s.price != nil || s.lat != nil || s.lng != nil
}

func parseScalars(f ResortFields) (scalars, error) {
	var out scalars
	out.name = nonEmpty(f.Name)
	out.description = nonEmpty(f.Description)
	out.location = nonEmpty(f.Location)

	if st := nonEmpty(f.Status); st != nil {
		v := domain.ResortStatus(strings.ToLower(*st))
		if !v.Valid() {
			return scalars{}, domain.Invalid("status", "must be one of active, inactive, pending")
		}
		out.status = &v
	}

	var err error
	if out.price, err = f.Price.float("price"); err != nil {
		return scalars{}, err
	}
	if out.price != nil && *out.price < 0 {
		return scalars{}, domain.Invalid("price", "must not be negative")
	}
	if out.lat, err = f.Lat.float("lat"); err != nil {
		return scalars{}, err
	}
	if out.lat != nil && (*out.lat < -90 || *out.lat > 90) {
		return scalars{}, domain.Invalid("lat", "must be within [-90, 90]")
	}
	if out.lng, err = f.Lng.float("lng"); err != nil {
		return scalars{}, err
	}
	if out.lng != nil && (*out.lng < -180 || *out.lng > 180) {
		return scalars{}, domain.Invalid("lng", "must be within [-180, 180]")
	}
	return out, nil
}

// apply merges s into r. A one-sided coordinate update pairs with the stored
// other half.
func (s scalars) apply(r *domain.Resort) error {
	if s.name != nil {
		r.Name = *s.name
	}
	if s.description != nil {
		r.Description = *s.description
	}
	if s.location != nil {
		r.Location = *s.location
	}
	if s.status != nil {
		r.Status = *s.status
	}
	if s.price != nil {
		r.Price = *s.price
	}
	lat, lng := r.Lat, r.Lng
	if s.lat != nil {
		lat = s.lat
	}
	if s.lng != nil {
		lng = s.lng
	}
	switch {
	case lat != nil && lng == nil:
		return domain.Invalid("lng", "is required when lat is set")
	case lng != nil && lat == nil:
		return domain.Invalid("lat", "is required when lng is set")
	}
	r.Lat, r.Lng = lat, lng
	return nil
}

// validateNewMedia requires appended references to carry an http(s) URL.
func validateNewMedia(field string, refs []domain.MediaRef) error {
	for i, r := range refs {
		if r.IsZero() {
			continue
		}
		if !strings.HasPrefix(r.URL, "http://") && !strings.HasPrefix(r.URL, "https://") {
			return domain.Invalid(fmt.Sprintf("%s[%d]", field, i), "must be an http(s) URL")
		}
	}
	return nil
}

func nonEmpty(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

func nonZero(refs []domain.MediaRef) []domain.MediaRef {
	out := make([]domain.MediaRef, 0, len(refs))
	for _, r := range refs {
		if !r.IsZero() {
			out = append(out, r)
		}
	}
	return out
}
