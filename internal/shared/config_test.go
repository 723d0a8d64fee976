package shared_test

import (
	"errors"
	"testing"
	"time"

	"resort_hub/internal/shared"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("GEO_REQUIRED", "")
	c := shared.Load()
	if c.StoreBackend != "mongo" || c.MediaBackend != "cloudinary" {
		t.Fatalf("unexpected backends %q %q", c.StoreBackend, c.MediaBackend)
	}
	if c.GeoRequired || c.PruneEmptyFiles {
		t.Fatalf("optional validations must default off")
	}
	if c.TokenTTL != 24*time.Hour || c.MediaDeleteTimeout != 10*time.Second {
		t.Fatalf("unexpected durations %v %v", c.TokenTTL, c.MediaDeleteTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "MySQL")
	t.Setenv("GEO_REQUIRED", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("MEDIA_DELETE_CONCURRENCY", "nope")
	c := shared.Load()
	if c.StoreBackend != "mysql" || !c.GeoRequired {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", c.CORSOrigins)
	}
	if c.MediaDeleteParallel != 4 {
		t.Fatalf("bad integer should fall back, got %d", c.MediaDeleteParallel)
	}
}

func TestValidateAPI_JWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APP_ENV", "prod")
	if err := shared.Load().ValidateAPI(); !errors.Is(err, shared.ErrNoJWTSecret) {
		t.Fatalf("want ErrNoJWTSecret outside dev, got %v", err)
	}

	t.Setenv("APP_ENV", "dev")
	c := shared.Load()
	if c.JWTSecret == "" || c.ValidateAPI() != nil {
		t.Fatalf("dev should get a generated secret, got %q", c.JWTSecret)
	}
	if shared.Load().JWTSecret == c.JWTSecret {
		t.Fatalf("generated secrets should differ per load")
	}

	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "s3cret")
	if err := shared.Load().ValidateAPI(); err != nil {
		t.Fatalf("unexpected %v", err)
	}
}
