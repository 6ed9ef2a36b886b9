// Package gateway talks to the TON payment gateway: outbound transfers and
// payment-tracking registration.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tontips/backend/internal/services"
)

// ErrGateway indicates a non-2xx or transport failure from the gateway.
var ErrGateway = errors.New("gateway error")

// trackingStateCurrent tells the gateway to track from now on, without
// scanning history. Used for wallets that have no persisted cursor yet.
const trackingStateCurrent = "current"

type Client struct {
	baseURL     string
	callbackURL string
	httpClient  *http.Client
}

func NewClient(baseURL, callbackURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type sendRequest struct {
	SourceAddress      string `json:"sourceAddress"`
	SourceKey          string `json:"sourceKey"`
	DestinationAddress string `json:"destinationAddress"`
	Amount             int64  `json:"amount"`
	SenderPaysFees     bool   `json:"senderPaysFees"`
	Message            string `json:"message,omitempty"`
}

type sendResponse struct {
	Seqno json.Number `json:"seqno"`
}

// Send submits an outbound transfer and returns its settlement reference.
func (c *Client) Send(ctx context.Context, req services.TransferRequest) (*services.TransferResult, error) {
	body := sendRequest{
		SourceAddress:      req.SourceAddress,
		SourceKey:          req.SourceKey,
		DestinationAddress: req.DestinationAddress,
		Amount:             req.Amount,
		SenderPaysFees:     false,
		Message:            req.Message,
	}

	var resp sendResponse
	if err := c.post(ctx, "/send", body, &resp); err != nil {
		return nil, err
	}
	return &services.TransferResult{Seqno: resp.Seqno.String()}, nil
}

type trackingRequest struct {
	Address       string `json:"address"`
	CallbackURL   string `json:"callbackUrl"`
	TrackingState any    `json:"trackingState"`
}

// RegisterTracking asks the gateway to deliver payment callbacks for the
// address, resuming from the persisted cursor. An empty cursor means the
// wallet was never tracked; the gateway starts from now.
func (c *Client) RegisterTracking(ctx context.Context, address, trackingState string) error {
	req := trackingRequest{
		Address:     address,
		CallbackURL: c.callbackURL,
	}
	if trackingState == "" {
		req.TrackingState = trackingStateCurrent
	} else {
		req.TrackingState = json.RawMessage(trackingState)
	}

	if err := c.post(ctx, "/startPaymentTracking", req, nil); err != nil {
		return err
	}

	log.Printf("[GATEWAY] Tracking registered for wallet %s", address)
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrGateway, path, resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrGateway, path, err)
	}
	return nil
}
