package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/retroludo/retrodex/pkg/logger"
)

const (
	gameMediaEndpoint    = "/api2/mediaJeu.php"
	consoleMediaEndpoint = "/api2/mediaSysteme.php"

	// defaultFetchTimeout bounds a single provider call when none is configured.
	defaultFetchTimeout = 10 * time.Second

	// probeLimit caps how much of a media response body is read when deciding
	// whether the provider actually returned media.
	probeLimit = 512
)

// Request identifies one media asset in the provider's namespace.
type Request struct {
	SystemID  int64
	ItemID    int64 // zero for console media
	MediaType string
	Region    Region
}

// Fetcher resolves a Request to an externally hosted URL, or empty when the
// provider has no such media. Provider-side failures are normalised to the
// empty result; only context cancellation surfaces as an error.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (string, error)
}

// ProviderConfig carries credentials and tuning for the media provider client.
type ProviderConfig struct {
	BaseURL     string
	DevID       string
	DevPassword string
	Softname    string
	SSID        string
	SSPassword  string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client talks to the upstream media provider under global rate limiting.
type Client struct {
	baseURL     string
	devID       string
	devPassword string
	softname    string
	ssid        string
	ssPassword  string
	timeout     time.Duration
	http        *http.Client
	pacer       *Pacer
	log         *zap.Logger
}

// NewClient validates credentials and constructs a provider client. Missing
// credentials are a configuration defect and fail construction loudly.
func NewClient(cfg ProviderConfig, pacer *Pacer) (*Client, error) {
	devID := strings.TrimSpace(cfg.DevID)
	devPassword := strings.TrimSpace(cfg.DevPassword)
	if devID == "" || devPassword == "" {
		return nil, errors.New("media provider: dev_id and dev_password must be configured")
	}
	if pacer == nil {
		return nil, errors.New("media provider: pacer is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("media provider: base_url must be configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:     baseURL,
		devID:       devID,
		devPassword: devPassword,
		softname:    strings.TrimSpace(cfg.Softname),
		ssid:        strings.TrimSpace(cfg.SSID),
		ssPassword:  strings.TrimSpace(cfg.SSPassword),
		timeout:     timeout,
		http:        httpClient,
		pacer:       pacer,
		log:         logger.WithModule("media.provider"),
	}, nil
}

// MediaURL builds the deterministic request URL for req. Same inputs and
// credentials always produce the same target; the region is emitted lowercase
// and the sentinel region yields a bare media tag.
func (c *Client) MediaURL(req Request) string {
	endpoint := consoleMediaEndpoint
	if req.ItemID > 0 {
		endpoint = gameMediaEndpoint
	}

	media := req.MediaType
	if req.Region != RegionNone {
		media = fmt.Sprintf("%s(%s)", req.MediaType, strings.ToLower(string(req.Region)))
	}

	// Parameter order is part of the provider contract; url.Values would
	// re-sort it, so the query string is assembled by hand.
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString(endpoint)
	b.WriteString("?devid=")
	b.WriteString(url.QueryEscape(c.devID))
	b.WriteString("&devpassword=")
	b.WriteString(url.QueryEscape(c.devPassword))
	b.WriteString("&softname=")
	b.WriteString(url.QueryEscape(c.softname))
	b.WriteString("&ssid=")
	b.WriteString(url.QueryEscape(c.ssid))
	b.WriteString("&sspassword=")
	b.WriteString(url.QueryEscape(c.ssPassword))
	b.WriteString("&systemeid=")
	fmt.Fprintf(&b, "%d", req.SystemID)
	if req.ItemID > 0 {
		b.WriteString("&jeuid=")
		fmt.Fprintf(&b, "%d", req.ItemID)
	}
	b.WriteString("&media=")
	b.WriteString(url.QueryEscape(media))

	return b.String()
}

// Fetch performs one rate-limited provider call. Network errors, non-2xx
// statuses, empty bodies and textual provider errors all normalise to the
// empty result so callers never need to distinguish provider failure classes.
func (c *Client) Fetch(ctx context.Context, req Request) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.pacer.AwaitSlot(ctx); err != nil {
		return "", err
	}

	target := c.MediaURL(req)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("media provider: build request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Timeouts and transport errors are treated as "no media" unless the
		// caller itself was cancelled.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.log.Debug("provider call failed",
			zap.String("media", req.MediaType),
			zap.String("region", string(req.Region)),
			zap.Error(err),
		)
		return "", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug("provider returned non-2xx",
			zap.Int("status", resp.StatusCode),
			zap.String("media", req.MediaType),
		)
		return "", nil
	}

	probe := make([]byte, probeLimit)
	n, readErr := io.ReadFull(resp.Body, probe)
	if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
		return "", nil
	}
	if n == 0 {
		return "", nil
	}

	if isProviderErrorBody(probe[:n]) {
		return "", nil
	}

	return target, nil
}

// isProviderErrorBody recognises the provider's textual error markers, which
// arrive with a 200 status in place of media bytes.
func isProviderErrorBody(body []byte) bool {
	text := strings.ToUpper(strings.TrimSpace(string(body)))
	if text == "" {
		return true
	}
	for _, marker := range []string{"NOMEDIA", "ERREUR", "ERROR", "API CLOSED"} {
		if strings.HasPrefix(text, marker) {
			return true
		}
	}
	return false
}
