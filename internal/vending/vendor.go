package vending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/earnflow/earnflow/internal/ledger"
)

// VendRequest carries the details sent to the external vendor.
type VendRequest struct {
	Product     ledger.HoldPurpose
	Amount      int64
	PhoneNumber string
	Reference   string
}

// VendDecision captures the vendor's response.
type VendDecision struct {
	Reference string
	Status    string
}

// Vendor represents a connector to an external data or airtime supplier.
type Vendor interface {
	Vend(ctx context.Context, req VendRequest) (VendDecision, error)
}

// StaticVendor simulates a vendor that always fulfils.
type StaticVendor struct{}

// Vend approves the request with a synthetic reference.
func (StaticVendor) Vend(_ context.Context, _ VendRequest) (VendDecision, error) {
	return VendDecision{Reference: uuid.NewString(), Status: "fulfilled"}, nil
}

// HTTPVendor calls a real vendor API, authenticating each request with a
// bearer token from the cache.
type HTTPVendor struct {
	baseURL string
	tokens  *TokenCache
	client  *http.Client
}

// NewHTTPVendor builds a connector for the vendor at baseURL.
func NewHTTPVendor(baseURL string, tokens *TokenCache) *HTTPVendor {
	return &HTTPVendor{
		baseURL: baseURL,
		tokens:  tokens,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type vendorPayload struct {
	Product     string `json:"product"`
	Amount      int64  `json:"amount"`
	PhoneNumber string `json:"phone_number"`
	Reference   string `json:"reference"`
}

type vendorResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Vend submits the order to the vendor API.
func (v *HTTPVendor) Vend(ctx context.Context, req VendRequest) (VendDecision, error) {
	token, err := v.tokens.Token(ctx)
	if err != nil {
		return VendDecision{}, fmt.Errorf("vendor token: %w", err)
	}

	body, err := json.Marshal(vendorPayload{
		Product:     string(req.Product),
		Amount:      req.Amount,
		PhoneNumber: req.PhoneNumber,
		Reference:   req.Reference,
	})
	if err != nil {
		return VendDecision{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/vend", bytes.NewReader(body))
	if err != nil {
		return VendDecision{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return VendDecision{}, fmt.Errorf("vendor call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		v.tokens.Invalidate()
		return VendDecision{}, fmt.Errorf("vendor rejected token")
	}
	if resp.StatusCode >= 400 {
		return VendDecision{}, fmt.Errorf("vendor returned status %d", resp.StatusCode)
	}

	var decoded vendorResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return VendDecision{}, fmt.Errorf("decode vendor response: %w", err)
	}
	return VendDecision{Reference: decoded.Reference, Status: decoded.Status}, nil
}
