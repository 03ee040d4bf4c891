package esi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"eve-trade-ledger/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNotFound is returned when ESI answers 404. For paginated history
// endpoints this is the graceful end-of-stream signal, not a failure.
var ErrNotFound = errors.New("esi: not found")

// OrderDTO is one historical order as reported by the ESI order history
// endpoint.
type OrderDTO struct {
	OrderID       int64     `json:"order_id"`
	Duration      int32     `json:"duration"`
	Escrow        float64   `json:"escrow,omitempty"`
	IsBuyOrder    bool      `json:"is_buy_order"`
	IsCorporation bool      `json:"is_corporation"`
	Issued        time.Time `json:"issued"`
	LocationID    int64     `json:"location_id"`
	MinVolume     int32     `json:"min_volume,omitempty"`
	Price         float64   `json:"price"`
	Range         string    `json:"range"`
	RegionID      int64     `json:"region_id"`
	State         string    `json:"state"`
	TypeID        int32     `json:"type_id"`
	VolumeRemain  int64     `json:"volume_remain"`
	VolumeTotal   int64     `json:"volume_total"`
}

// TokenResponse is the result of refreshing an SSO access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenExpiry time.Time
}

// ClientInterface defines the interface for the ESI API client.
type ClientInterface interface {
	OrdersHistory(ctx context.Context, traderID int64, accessToken string, page int) ([]OrderDTO, bool, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// Client is a client for the ESI API and the EVE SSO token endpoint.
// It implements ClientInterface.
type Client struct {
	client       *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string
	logger       *zap.Logger
	limiter      *rate.Limiter
}

// ensure Client implements the interface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new ESI API client.
func NewClient(cfg *config.ESI, logger *zap.Logger) *Client {
	client := resty.New().SetBaseURL(cfg.BaseURL)

	// The limiter paces paginated history pulls so one import cannot hammer
	// the upstream; ESI error-limits aggressive clients.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:       client,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		logger:       logger,
		limiter:      limiter,
	}
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	req.SetContext(ctx)

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusNotFound {
				// Page past the end of the history; the caller decides
				// whether this is an error at all.
				return resp, ErrNotFound
			}
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return resp, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		// If we should retry, calculate wait time
		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

// OrdersHistory fetches one page of a character's order history. The second
// return value reports whether more pages remain, derived from the X-Pages
// response header. A 404 means the page is past the end of the history and
// yields (nil, false, nil).
func (c *Client) OrdersHistory(ctx context.Context, traderID int64, accessToken string, page int) ([]OrderDTO, bool, error) {
	var orders []OrderDTO

	req := c.client.R().
		SetResult(&orders).
		SetAuthToken(accessToken).
		SetQueryParam("page", strconv.Itoa(page))

	url := fmt.Sprintf("/characters/%d/orders/history/", traderID)
	resp, err := c.doRequest(ctx, http.MethodGet, url, req)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get orders history page %d: %w", page, err)
	}

	totalPages := 1
	if header := resp.Header().Get("X-Pages"); header != "" {
		if n, err := strconv.Atoi(header); err == nil {
			totalPages = n
		}
	}

	return orders, page < totalPages, nil
}

// RefreshToken exchanges a refresh token for a fresh access token at the SSO
// token endpoint.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var token TokenResponse

	// tokenURL is absolute, so the client's ESI base URL is ignored here.
	req := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.clientSecret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": refreshToken,
		}).
		SetResult(&token)

	resp, err := req.Post(c.tokenURL)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh access token: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to refresh access token: status %s: %s", resp.Status(), resp.String())
	}

	if token.ExpiresIn == 0 {
		token.ExpiresIn = 1200 // SSO default, 20 minutes
	}
	token.TokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	c.logger.Info("Refreshed SSO access token", zap.Time("expiry", token.TokenExpiry))
	return &token, nil
}
