package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "pg-secret"

func newTestClient(url string) *Client {
	return NewClient(Config{
		Endpoint:    url,
		APIKey:      "api-key",
		SecretKey:   testSecret,
		CallbackURL: "https://school.example/callback",
		SchoolID:    "school-1",
		Timeout:     2 * time.Second,
	})
}

func TestCreateCollectRequest_Success(t *testing.T) {
	var got collectRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"collect_request_id":  "cr1",
			"collect_request_url": "https://pay/cr1",
		})
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).CreateCollectRequest(context.Background(), decimal.RequireFromString("500"))
	require.NoError(t, err)
	assert.Equal(t, "cr1", res.CollectRequestID)
	assert.Equal(t, "https://pay/cr1", res.CollectRequestURL)

	assert.Equal(t, "school-1", got.SchoolID)
	assert.Equal(t, "500", got.Amount)
	assert.Equal(t, "https://school.example/callback", got.CallbackURL)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(got.Sign, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	assert.Equal(t, "school-1", claims["school_id"])
	assert.Equal(t, "500", claims["amount"])
	assert.Equal(t, "https://school.example/callback", claims["callback_url"])
}

func TestCreateCollectRequest_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		badPayload bool
	}{
		{name: "gateway error status", status: http.StatusBadGateway, body: `{"message":"down"}`},
		{name: "malformed json", status: http.StatusOK, body: `not-json`, badPayload: true},
		{name: "missing url", status: http.StatusOK, body: `{"collect_request_id":"cr1"}`, badPayload: true},
		{name: "missing id", status: http.StatusOK, body: `{"collect_request_url":"https://pay/x"}`, badPayload: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := newTestClient(srv.URL).CreateCollectRequest(context.Background(), decimal.NewFromInt(100))
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.badPayload {
				assert.ErrorIs(t, err, ErrBadResponse)
			} else {
				assert.NotErrorIs(t, err, ErrBadResponse)
				assert.Contains(t, err.Error(), "502")
			}
		})
	}
}

func TestCreateCollectRequest_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).CreateCollectRequest(context.Background(), decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestCreateCollectRequest_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL).CreateCollectRequest(ctx, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
