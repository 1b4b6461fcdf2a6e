// Package fetch retrieves raw tile images over HTTP with retry, backoff
// and on-disk idempotency.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog"
)

const (
	// MinTileSize is the plausibility floor: a file at or below this size
	// is assumed to be a truncated write or an error page and is fetched
	// again.
	MinTileSize = 256

	// sniffBypassSize is the body length above which a failed magic-byte
	// sniff is ignored; a false negative at this size is implausible.
	sniffBypassSize = 8 * 1024

	defaultAttempts = 3
	defaultBackoff  = 700 * time.Millisecond
)

// subdomains rotated into the {s} template token to spread load across
// federated tile hosts.
var subdomains = []string{"a", "b", "c"}

var (
	ErrInvalidURL       = errors.New("invalid tile URL")
	ErrInvalidImageData = errors.New("response is not image data")
)

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, http.StatusText(e.Code))
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Outcome describes how a tile request was satisfied.
type Outcome int

const (
	// Downloaded means the tile was fetched over the network.
	Downloaded Outcome = iota
	// Skipped means a plausible file already existed at the destination.
	Skipped
)

// Client fetches tiles. Safe for concurrent use.
type Client struct {
	http      *http.Client
	userAgent string
	attempts  int
	backoff   time.Duration
	log       zerolog.Logger
}

// New creates a tile fetch client.
func New(userAgent string, log zerolog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		userAgent: userAgent,
		attempts:  defaultAttempts,
		backoff:   defaultBackoff,
		log:       log,
	}
}

// BuildURL substitutes the {z}, {x}, {y} tokens with the tile indices and
// {s} with a pseudo-random subdomain, then checks the result parses.
func BuildURL(template string, t maptile.Tile) (string, error) {
	u := template
	u = strings.ReplaceAll(u, "{z}", strconv.FormatUint(uint64(t.Z), 10))
	u = strings.ReplaceAll(u, "{x}", strconv.FormatUint(uint64(t.X), 10))
	u = strings.ReplaceAll(u, "{y}", strconv.FormatUint(uint64(t.Y), 10))
	if strings.Contains(u, "{s}") {
		u = strings.ReplaceAll(u, "{s}", subdomains[rand.Intn(len(subdomains))])
	}

	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, u)
	}
	return u, nil
}

// Tile fetches one tile into dest. A destination file already above the
// plausibility floor short-circuits the fetch entirely, which makes
// repeated runs over the same output root cheap and resumable.
//
// Transient failures (transport errors, 429 and 5xx statuses) are retried
// with a linearly increasing backoff. Any other non-200 status is terminal
// for the tile, as is a body that fails the image sniff: such bodies are
// almost always HTML error pages served with 200 and do not become images
// on retry.
func (c *Client) Tile(ctx context.Context, template string, t maptile.Tile, dest string) (Outcome, error) {
	if info, err := os.Stat(dest); err == nil && info.Size() > MinTileSize {
		return Skipped, nil
	}

	u, err := BuildURL(template, t)
	if err != nil {
		return Downloaded, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Downloaded, fmt.Errorf("create tile dir: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		body, err := c.get(ctx, u)
		if err == nil {
			if err := os.WriteFile(dest, body, 0o644); err != nil {
				return Downloaded, fmt.Errorf("write %s: %w", dest, err)
			}
			return Downloaded, nil
		}

		lastErr = err
		if !retryable(err) || attempt == c.attempts {
			break
		}

		delay := c.backoff * time.Duration(attempt)
		c.log.Debug().
			Uint32("z", uint32(t.Z)).Uint32("x", t.X).Uint32("y", t.Y).
			Int("attempt", attempt).Dur("backoff", delay).Err(err).
			Msg("tile fetch retry")

		select {
		case <-ctx.Done():
			return Downloaded, ctx.Err()
		case <-time.After(delay):
		}
	}

	return Downloaded, lastErr
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidImageData)
	}
	if !sniffImage(body) && len(body) < sniffBypassSize {
		return nil, fmt.Errorf("%w: %d bytes without an image signature", ErrInvalidImageData, len(body))
	}

	return body, nil
}

// sniffImage checks for a PNG or JPEG magic byte signature.
func sniffImage(data []byte) bool {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x89, 0x50, 0x4E, 0x47}):
		return true
	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xD8}):
		return true
	}
	return false
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	if errors.Is(err, ErrInvalidImageData) || errors.Is(err, ErrInvalidURL) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Transport-level errors are transient.
	return true
}
