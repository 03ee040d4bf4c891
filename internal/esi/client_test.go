package esi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"eve-trade-ledger/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// setupTestServer creates a new test server and a Client configured to use it.
func setupTestServer(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	c := &Client{
		client:       resty.New().SetBaseURL(server.URL),
		tokenURL:     server.URL + "/v2/oauth/token",
		clientID:     "test_client_id",
		clientSecret: "test_client_secret",
		logger:       zap.NewNop(), // Use a no-op logger for tests
		limiter:      rate.NewLimiter(rate.Inf, 1),
	}

	return c, server
}

func TestOrdersHistory(t *testing.T) {
	t.Run("MiddlePage", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/characters/90000001/orders/history/", r.URL.Path)
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "Bearer test_token", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Pages", "3")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`[
				{"order_id": 11, "type_id": 34, "is_buy_order": true,
				 "issued": "2026-08-01T10:00:00Z", "price": 5.05,
				 "volume_total": 100, "volume_remain": 40,
				 "location_id": 60003760, "region_id": 10000002, "state": "expired"}
			]`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		orders, hasMore, err := c.OrdersHistory(context.Background(), 90000001, "test_token", 2)

		// Assert
		require.NoError(t, err)
		assert.True(t, hasMore)
		require.Len(t, orders, 1)
		assert.Equal(t, int64(11), orders[0].OrderID)
		assert.Equal(t, int32(34), orders[0].TypeID)
		assert.Equal(t, int64(40), orders[0].VolumeRemain)
	})

	t.Run("LastPage", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Pages", "3")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`[{"order_id": 12, "type_id": 34, "issued": "2026-08-01T10:00:00Z"}]`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		_, hasMore, err := c.OrdersHistory(context.Background(), 90000001, "test_token", 3)

		// Assert
		require.NoError(t, err)
		assert.False(t, hasMore)
	})

	t.Run("NotFoundIsEndOfStream", func(t *testing.T) {
		// Arrange: a page past the end of the history.
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "Requested page does not exist!"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		orders, hasMore, err := c.OrdersHistory(context.Background(), 90000001, "test_token", 99)

		// Assert: graceful end of stream, not an error.
		require.NoError(t, err)
		assert.Empty(t, orders)
		assert.False(t, hasMore)
	})

	t.Run("MissingPagesHeaderMeansSinglePage", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`[]`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		_, hasMore, err := c.OrdersHistory(context.Background(), 90000001, "test_token", 1)

		// Assert
		require.NoError(t, err)
		assert.False(t, hasMore)
	})
}

func TestRefreshToken(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/oauth/token", r.URL.Path)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "test_client_id", user)
			assert.Equal(t, "test_client_secret", pass)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "old_refresh", r.PostForm.Get("refresh_token"))

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"access_token": "new_access", "expires_in": 1199}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		token, err := c.RefreshToken(context.Background(), "old_refresh")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "new_access", token.AccessToken)
		assert.False(t, token.TokenExpiry.IsZero())
	})

	t.Run("Rejected", func(t *testing.T) {
		// Arrange
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "invalid_grant"}`))
		})

		c, server := setupTestServer(handler)
		defer server.Close()

		// Act
		token, err := c.RefreshToken(context.Background(), "revoked")

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to refresh access token")
		assert.Nil(t, token)
	})
}

func TestNewClient(t *testing.T) {
	cfg := &config.ESI{
		BaseURL:        "https://esi.evetech.net/latest",
		TokenURL:       "https://login.eveonline.com/v2/oauth/token",
		ClientID:       "id",
		ClientSecret:   "secret",
		RateLimit:      10,
		RateLimitBurst: 2,
	}
	c := NewClient(cfg, zap.NewNop())
	assert.NotNil(t, c)
	assert.Equal(t, cfg.ClientID, c.clientID)
	assert.Equal(t, cfg.ClientSecret, c.clientSecret)
	assert.Equal(t, cfg.TokenURL, c.tokenURL)
}
