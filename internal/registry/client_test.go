package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testKey = "test-signing-key"

func TestRequestIssuance(t *testing.T) {
	var gotAuth string
	var gotBody IssuanceRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/certificates" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal(body, &gotBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, []byte(testKey))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	certID := uuid.New()
	req := IssuanceRequest{
		CertificateID:  certID,
		PointType:      "production",
		GSRN:           "571313000000000001",
		GridArea:       "DK1",
		PeriodStart:    1672531200,
		PeriodEnd:      1672534800,
		Quantity:       42,
		WalletPosition: 525600,
	}
	if err := client.RequestIssuance(context.Background(), req); err != nil {
		t.Fatalf("request issuance: %v", err)
	}

	if gotBody.CertificateID != certID || gotBody.Quantity != 42 {
		t.Fatalf("unexpected payload: %+v", gotBody)
	}

	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Fatalf("missing bearer token, got %q", gotAuth)
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimPrefix(gotAuth, "Bearer "), claims, func(token *jwt.Token) (any, error) {
		return []byte(testKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims.Issuer != "certificate-engine" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > 3*time.Minute {
		t.Fatalf("token TTL too long: %v", claims.ExpiresAt)
	}
}

func TestRequestIssuanceNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("ledger unavailable"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, []byte(testKey))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	err = client.RequestIssuance(context.Background(), IssuanceRequest{CertificateID: uuid.New()})
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("err = %v, want status 502", err)
	}
}

func TestRequestIssuanceMissingID(t *testing.T) {
	client, err := NewClient("http://registry.local", []byte(testKey))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.RequestIssuance(context.Background(), IssuanceRequest{}); err == nil {
		t.Fatal("expected error for missing certificate id")
	}
}
