// Package cloudinary deletes uploaded media through the Cloudinary upload API.
package cloudinary

import (
	"context"
	crand "crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"resort_hub/internal/adapters/observability"
	"resort_hub/internal/domain"
)

const DefaultBase = "https://api.cloudinary.com"

type Client struct {
	base   string
	cloud  string
	key    string
	secret string
	hc     *http.Client
	rl     *rate.Limiter
	now    func() time.Time
}

func New(base, cloud, key, secret string, rps int) (*Client, error) {
	if cloud == "" || key == "" || secret == "" {
		return nil, fmt.Errorf("cloudinary: cloud name, API key and API secret are required")
	}
	if base == "" {
		base = DefaultBase
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		cloud:  cloud,
		key:    key,
		secret: secret,
		hc:     &http.Client{Timeout: 20 * time.Second},
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
		now:    time.Now,
	}, nil
}

var (
	ErrUnauthorized = errors.New("cloudinary: unauthorized")
	ErrForbidden    = errors.New("cloudinary: forbidden")
)

type destroyResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Destroy removes one asset. An asset that is already gone counts as deleted.
func (c *Client) Destroy(ctx context.Context, publicID string, kind domain.MediaKind) error {
	if publicID == "" {
		return fmt.Errorf("cloudinary: empty public id")
	}
	if !kind.Valid() {
		return fmt.Errorf("cloudinary: unknown media kind %q", kind)
	}
	endpoint := fmt.Sprintf("%s/v1_1/%s/%s/destroy", c.base, c.cloud, kind)

	var out destroyResponse
	err := c.post(ctx, endpoint, func() url.Values { return c.signed(publicID) }, &out)
	switch {
	case err != nil:
		observability.ObserveMediaDelete("cloudinary", string(kind), "error")
		return err
	case out.Result == "ok":
		observability.ObserveMediaDelete("cloudinary", string(kind), "ok")
		return nil
	case out.Result == "not found":
		observability.ObserveMediaDelete("cloudinary", string(kind), "gone")
		return nil
	}
	observability.ObserveMediaDelete("cloudinary", string(kind), "error")
	if out.Error != nil {
		return fmt.Errorf("cloudinary: destroy %q: %s", publicID, out.Error.Message)
	}
	return fmt.Errorf("cloudinary: destroy %q: unexpected result %q", publicID, out.Result)
}

// signed builds the form for a destroy call: every parameter except api_key
// is signed as sha1("k1=v1&k2=v2" + secret) with keys in lexical order.
func (c *Client) signed(publicID string) url.Values {
	params := map[string]string{
		"public_id":  publicID,
		"timestamp":  strconv.FormatInt(c.now().Unix(), 10),
		"invalidate": "true",
	}
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("signature", Sign(params, c.secret))
	form.Set("api_key", c.key)
	return form
}

func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + secret))
	return hex.EncodeToString(sum[:])
}

// post sends a form POST with client-side rate limiting, retries and JSON
// decode into out. Retries on 429 and transient 5xx, honoring Retry-After.
// The form is rebuilt per attempt so every retry carries a fresh timestamp.
func (c *Client) post(ctx context.Context, endpoint string, form func() url.Values, out any) error {
	var lastErr error
	for i := 0; i < 4; i++ {
		// every attempt, retries included, goes through the limiter
		if err := c.rl.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form().Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "resort-hub/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("cloudinary", "destroy", 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("cloudinary", "destroy", resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			// unknown asset on some API versions
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return json.Unmarshal([]byte(`{"result":"not found"}`), out)

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("cloudinary: remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("cloudinary: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff is 200ms doubling per attempt plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
