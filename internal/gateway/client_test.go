package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tontips/backend/internal/services"
)

func testClient(baseURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		callbackURL: "https://bot.example/tracking",
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

func TestClient_Send(t *testing.T) {
	t.Run("numeric seqno", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/send", r.URL.Path)

			body, _ := io.ReadAll(r.Body)
			var req map[string]any
			assert.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "EQwallet", req["sourceAddress"])
			assert.Equal(t, "EQdest", req["destinationAddress"])
			assert.Equal(t, float64(500_000_000), req["amount"])
			assert.Equal(t, false, req["senderPaysFees"])

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"seqno": 12345}`))
		}))
		defer server.Close()

		result, err := testClient(server.URL).Send(context.Background(), services.TransferRequest{
			SourceAddress:      "EQwallet",
			SourceKey:          "hexkey",
			DestinationAddress: "EQdest",
			Amount:             500_000_000,
		})
		assert.NoError(t, err)
		assert.Equal(t, "12345", result.Seqno)
	})

	t.Run("string seqno", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"seqno": "67890"}`))
		}))
		defer server.Close()

		result, err := testClient(server.URL).Send(context.Background(), services.TransferRequest{
			SourceAddress:      "EQwallet",
			DestinationAddress: "EQdest",
			Amount:             1,
		})
		assert.NoError(t, err)
		assert.Equal(t, "67890", result.Seqno)
	})

	t.Run("gateway failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := testClient(server.URL).Send(context.Background(), services.TransferRequest{
			SourceAddress:      "EQwallet",
			DestinationAddress: "EQdest",
			Amount:             1,
		})
		assert.ErrorIs(t, err, ErrGateway)
	})
}

func TestClient_RegisterTracking(t *testing.T) {
	t.Run("fresh wallet starts from now", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/startPaymentTracking", r.URL.Path)

			body, _ := io.ReadAll(r.Body)
			var req map[string]any
			assert.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "EQwallet", req["address"])
			assert.Equal(t, "https://bot.example/tracking", req["callbackUrl"])
			assert.Equal(t, "current", req["trackingState"])

			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		err := testClient(server.URL).RegisterTracking(context.Background(), "EQwallet", "")
		assert.NoError(t, err)
	})

	t.Run("persisted cursor passed through", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			var req map[string]any
			assert.NoError(t, json.Unmarshal(body, &req))
			state, ok := req["trackingState"].(map[string]any)
			assert.True(t, ok)
			assert.Equal(t, "31000000", state["lastProcessedLt"])

			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		err := testClient(server.URL).RegisterTracking(context.Background(), "EQwallet", `{"lastProcessedLt":"31000000"}`)
		assert.NoError(t, err)
	})

	t.Run("gateway failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		err := testClient(server.URL).RegisterTracking(context.Background(), "EQwallet", "")
		assert.ErrorIs(t, err, ErrGateway)
	})
}
