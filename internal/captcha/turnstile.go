package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/pasindubuddhika1999/findmyphone/internal/config"
)

const humanTokenIssuer = "findmyphone-captcha"

// ITurnstileVerifier verifies Cloudflare Turnstile challenges and issues the
// short-lived human tokens (X-C-T) that lift the soft rate limit.
type ITurnstileVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
	GenerateHumanToken(client ClientFingerprint, ttl time.Duration) (string, error)
	ValidateHumanToken(tokenString string, client ClientFingerprint) bool
}

// ClientFingerprint binds a human token to the client that solved the challenge.
type ClientFingerprint struct {
	IP          string
	Fingerprint string // X-BFP
	SPASession  string // X-SPA
}

func (f ClientFingerprint) String() string {
	return fmt.Sprintf("%s|%s|%s", f.IP, f.Fingerprint, f.SPASession)
}

// siteVerifyResponse is the body returned by the siteverify endpoint.
type siteVerifyResponse struct {
	Success     bool     `json:"success"`
	ErrorCodes  []string `json:"error-codes"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	Action      string   `json:"action"`
}

type turnstileVerifier struct {
	cfg        *config.Config
	httpClient *http.Client
}

func NewTurnstileVerifier(cfg *config.Config) ITurnstileVerifier {
	return &turnstileVerifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Verify calls the Cloudflare siteverify endpoint. Without a secret key every
// challenge passes, which is what local development wants.
func (v *turnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if v.cfg.CloudflareTurnstileSecretKey == "" {
		log.Println("WARN: Cloudflare Turnstile secret key not configured. Skipping verification.")
		return true, nil
	}

	form := map[string]string{
		"secret":   v.cfg.CloudflareTurnstileSecretKey,
		"response": token,
	}
	if remoteIP != "" {
		form["remoteip"] = remoteIP
	}
	jsonData, err := json.Marshal(form)
	if err != nil {
		return false, fmt.Errorf("failed to encode turnstile request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.CloudflareSiteVerifyURL, bytes.NewReader(jsonData))
	if err != nil {
		return false, fmt.Errorf("failed to create turnstile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		log.Printf("Error calling Turnstile siteverify: %v", err)
		return false, fmt.Errorf("failed to contact turnstile service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return false, fmt.Errorf("failed to read turnstile response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("Turnstile siteverify returned status %d - Body: %s", resp.StatusCode, string(body))
		return false, fmt.Errorf("turnstile verification failed with status %d", resp.StatusCode)
	}

	var out siteVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("failed to parse turnstile response: %w", err)
	}
	if !out.Success {
		log.Printf("Turnstile verification unsuccessful. Error codes: %v", out.ErrorCodes)
	}
	return out.Success, nil
}

// HumanTokenClaims are the claims of an X-C-T token.
type HumanTokenClaims struct {
	IP          string `json:"ip"`
	Fingerprint string `json:"bfp"`
	SPASession  string `json:"spa"`
	jwt.RegisteredClaims
}

func (v *turnstileVerifier) GenerateHumanToken(client ClientFingerprint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &HumanTokenClaims{
		IP:          client.IP,
		Fingerprint: client.Fingerprint,
		SPASession:  client.SPASession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    humanTokenIssuer,
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(v.cfg.JwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign human token: %w", err)
	}
	return tokenString, nil
}

// ValidateHumanToken checks signature, expiry, issuer and that the token
// belongs to the requesting client.
func (v *turnstileVerifier) ValidateHumanToken(tokenString string, client ClientFingerprint) bool {
	claims := &HumanTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(v.cfg.JwtSecret), nil
	}, jwt.WithIssuer(humanTokenIssuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		log.Printf("Invalid X-C-T token: %v", err)
		return false
	}

	if claims.IP != client.IP || claims.Fingerprint != client.Fingerprint || claims.SPASession != client.SPASession {
		log.Printf("X-C-T token mismatch: %s|%s|%s vs %s", claims.IP, claims.Fingerprint, claims.SPASession, client)
		return false
	}
	return true
}
