package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	metering "certificate-engine/internal/metering/domain"
)

// IssuanceRequest asks the external registry to issue the on-ledger proof
// for a locally created certificate. The answer arrives asynchronously as a
// RegistryIssued or RegistryRejected message, never as a synchronous reply.
type IssuanceRequest struct {
	CertificateID  uuid.UUID            `json:"certificate_id"`
	PointType      string               `json:"point_type"`
	GSRN           string               `json:"gsrn"`
	GridArea       string               `json:"grid_area"`
	PeriodStart    int64                `json:"period_start"`
	PeriodEnd      int64                `json:"period_end"`
	Technology     *metering.Technology `json:"technology,omitempty"`
	Quantity       int64                `json:"quantity"`
	WalletPosition int32                `json:"wallet_position"`
}

// Client is a minimal REST client for the external certificate registry.
// Requests carry a short-lived HS256 service token.
type Client struct {
	baseURL    string
	signingKey []byte
	issuer     string
	tokenTTL   time.Duration
	client     *http.Client
	now        func() time.Time
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(c *Client) {
		if issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a registry client.
func NewClient(baseURL string, signingKey []byte, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("registry: empty base url")
	}
	if len(signingKey) == 0 {
		return nil, errors.New("registry: empty signing key")
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
		issuer:     "certificate-engine",
		tokenTTL:   2 * time.Minute,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// RequestIssuance submits the issuance request. A nil error only means the
// registry accepted the request for processing.
func (c *Client) RequestIssuance(ctx context.Context, req IssuanceRequest) error {
	if req.CertificateID == uuid.Nil {
		return errors.New("registry: missing certificate id")
	}
	return c.doJSON(ctx, http.MethodPost, "/api/v1/certificates", req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("registry: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("registry: build request: %w", err)
	}
	token, err := c.mintToken()
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("registry: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("registry: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

func (c *Client) mintToken() (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("registry: sign token: %w", err)
	}
	return signed, nil
}
