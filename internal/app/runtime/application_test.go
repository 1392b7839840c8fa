package runtime

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/winddownhq/winddown/internal/config"
	"github.com/winddownhq/winddown/internal/middleware"
)

func testKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemBytes)
}

func signToken(t *testing.T, key *rsa.PrivateKey, userID string) string {
	t.Helper()
	claims := middleware.Claims{
		UserID: userID,
		Role:   "member",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestNewApplicationMemoryMode(t *testing.T) {
	cfg := config.Default()

	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	resp := httptest.NewRecorder()
	application.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected a trace id header on every response")
	}

	// Without a configured public key no identity is attached, so protected
	// routes reject.
	resp = httptest.NewRecorder()
	application.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/routines", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous request: expected 401, got %d", resp.Code)
	}

	if err := application.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewApplicationWithAuth(t *testing.T) {
	key, publicPEM := testKeyPair(t)

	cfg := config.Default()
	cfg.Auth.JWTPublicKey = publicPEM

	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	defer application.Shutdown(context.Background())

	handler := application.Handler()

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/routines", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", resp.Code)
	}

	// Skip paths bypass authentication entirely.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz without token: expected 200, got %d", resp.Code)
	}

	token := signToken(t, key, "user-42")
	req := httptest.NewRequest(http.MethodPost, "/routines", bytes.NewBufferString(`{"name":"Night"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("authenticated create: expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/routines", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("authenticated list: expected 200, got %d", resp.Code)
	}
}

func TestNewApplicationRejectsBadKey(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTPublicKey = "-----BEGIN PUBLIC KEY-----\nnot a key\n-----END PUBLIC KEY-----"

	if _, err := NewApplication(cfg); err == nil {
		t.Fatal("expected an error for an unparsable public key")
	}
}

func TestParsePublicKey(t *testing.T) {
	_, publicPEM := testKeyPair(t)

	if _, err := parsePublicKey(publicPEM); err != nil {
		t.Fatalf("inline pem: %v", err)
	}

	path := filepath.Join(t.TempDir(), "jwt.pub")
	if err := os.WriteFile(path, []byte(publicPEM), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	if _, err := parsePublicKey(path); err != nil {
		t.Fatalf("key file: %v", err)
	}

	if _, err := parsePublicKey(filepath.Join(t.TempDir(), "missing.pub")); err == nil {
		t.Fatal("expected an error for a missing key file")
	}
	if _, err := parsePublicKey("-----BEGIN PUBLIC KEY-----\ngarbage\n-----END PUBLIC KEY-----"); err == nil {
		t.Fatal("expected an error for garbage pem")
	}
}
