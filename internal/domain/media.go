package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool { return k == KindImage || k == KindVideo }

// MediaRef is the normalized form of a stored media reference. Either field
// may be empty, but not both.
type MediaRef struct {
	URL      string `json:"url,omitempty"`
	PublicID string `json:"public_id,omitempty"`
}

func (m MediaRef) IsZero() bool { return m.URL == "" && m.PublicID == "" }

// Matches is URL equality when both sides carry a URL. Only when one side
// has no URL does it fall back to identifier equality, so sibling assets
// that share a derived identifier (a.jpg, a.png) stay distinct.
func (m MediaRef) Matches(o MediaRef) bool {
	if m.URL != "" && o.URL != "" {
		return m.URL == o.URL
	}
	return m.PublicID != "" && m.PublicID == o.PublicID
}

func (m MediaRef) String() string {
	if m.URL != "" {
		return m.URL
	}
	return m.PublicID
}

const uploadMarker = "/upload/"

var versionPrefix = regexp.MustCompile(`^v\d+/`)

// ExtractPublicID derives the media host identifier from a delivery URL:
// the path after "/upload/", without a leading "v<digits>/" and without the
// extension. ok is false when the URL has no upload marker.
func ExtractPublicID(url string) (string, bool) {
	i := strings.Index(url, uploadMarker)
	if i < 0 {
		return "", false
	}
	rest := url[i+len(uploadMarker):]
	rest = versionPrefix.ReplaceAllString(rest, "")
	if dot := strings.LastIndex(rest, "."); dot >= 0 {
		rest = rest[:dot]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

// ParseMediaRef normalizes the bare-string form. Strings with a scheme are
// URLs (identifier derived when possible); anything else is an identifier.
func ParseMediaRef(s string) (MediaRef, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MediaRef{}, false
	}
	if !strings.Contains(s, "://") {
		return MediaRef{PublicID: s}, true
	}
	ref := MediaRef{URL: s}
	if id, ok := ExtractPublicID(s); ok {
		ref.PublicID = id
	}
	return ref, true
}

/********** alias registry for the structured form **********/

var mediaAliases = map[string][]string{
	"url":       {"url", "secure_url", "secureUrl", "src", "href"},
	"public_id": {"public_id", "publicId", "identifier", "id"},
}

func firstAlias(m map[string]any, key string) string {
	for _, k := range mediaAliases[key] {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// MediaRefFromMap normalizes the structured form.
func MediaRefFromMap(m map[string]any) (MediaRef, bool) {
	ref := MediaRef{URL: firstAlias(m, "url"), PublicID: firstAlias(m, "public_id")}
	if ref.URL != "" && ref.PublicID == "" {
		ref.PublicID, _ = ExtractPublicID(ref.URL)
	}
	return ref, !ref.IsZero()
}

// NormalizeMedia accepts either shape as produced by a generic decoder.
func NormalizeMedia(v any) (MediaRef, bool) {
	switch t := v.(type) {
	case string:
		return ParseMediaRef(t)
	case map[string]any:
		return MediaRefFromMap(t)
	case MediaRef:
		return t, !t.IsZero()
	}
	return MediaRef{}, false
}

func (m *MediaRef) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = MediaRef{}
		return nil
	}
	ref, ok := NormalizeMedia(raw)
	if !ok {
		return fmt.Errorf("media reference: unsupported value %s", string(b))
	}
	*m = ref
	return nil
}
