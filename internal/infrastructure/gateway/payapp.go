// Package gateway implements the client for the opaque PayApp
// encrypt/decrypt service. All gateway-specific payload shape lives
// here; the rest of the system only sees ports.EncryptRequest and
// ports.CallbackFields.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/technotronz/portal-api/internal/api/metrics"
	"github.com/technotronz/portal-api/internal/core/domain"
	"github.com/technotronz/portal-api/internal/core/ports"
)

const (
	encryptPath = "/EncryptionPayApp"
	decryptPath = "/DecryptionPayApp"
	payPath     = "/Pay"

	defaultTimeout = 15 * time.Second

	// rejectedSignature is the error text the gateway returns for an
	// expired or invalid encrypted string. It is a terminal rejection,
	// never a transient failure.
	rejectedSignature = "Index was outside"
)

// Config holds the gateway connection settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client talks to the PayApp HTTP API. It never retries: on any
// failure the caller must generate a fresh intent, because resuming an
// old encrypted payload risks stale or duplicate amounts.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	log          zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         &http.Client{Timeout: timeout},
		log:          log,
	}
}

type encryptRequestBody struct {
	Encryptstring ports.EncryptRequest `json:"Encryptstring"`
}

type decryptRequestBody struct {
	Decryptstring string `json:"Decryptstring"`
}

// Encrypt sends the canonical field set to the gateway's encryption
// endpoint and returns the opaque string to embed in the redirect.
func (c *Client) Encrypt(ctx context.Context, req ports.EncryptRequest) (string, error) {
	start := time.Now()
	body, status, err := c.post(ctx, encryptPath, encryptRequestBody{Encryptstring: req})
	metrics.GatewayRequestDuration.WithLabelValues("encrypt").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("gateway encrypt: %w", err)
	}
	if status != http.StatusOK {
		c.log.Error().Int("status", status).Str("body", truncate(body, 200)).Msg("gateway encrypt failed")
		return "", fmt.Errorf("gateway encrypt: unexpected status %d: %w", status, domain.ErrUpstreamMalformed)
	}

	encrypted := strings.TrimSpace(strings.Trim(strings.TrimSpace(body), `"`))
	if encrypted == "" {
		return "", fmt.Errorf("gateway encrypt: empty body: %w", domain.ErrUpstreamMalformed)
	}
	return encrypted, nil
}

// Decrypt sends the opaque callback payload to the decryption endpoint
// and normalizes whatever shape comes back.
func (c *Client) Decrypt(ctx context.Context, data string) (*ports.CallbackFields, error) {
	start := time.Now()
	body, status, err := c.post(ctx, decryptPath, decryptRequestBody{Decryptstring: data})
	metrics.GatewayRequestDuration.WithLabelValues("decrypt").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("gateway decrypt: %w", err)
	}
	if status != http.StatusOK {
		c.log.Error().Int("status", status).Str("body", truncate(body, 200)).Msg("gateway decrypt failed")
		return nil, fmt.Errorf("gateway decrypt: unexpected status %d: %w", status, domain.ErrUpstreamMalformed)
	}
	return normalize(body)
}

// PayURL builds the hosted-payment redirect for an encrypted blob.
func (c *Client) PayURL(encrypted string) string {
	return c.baseURL + payPath + "?data=" + url.QueryEscape(encrypted)
}

func (c *Client) post(ctx context.Context, path string, payload any) (string, int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("APIClient_ID", c.clientID)
	req.Header.Set("APIClient_secret", c.clientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	return string(body), resp.StatusCode, nil
}

// decryptedShape is the tagged union of response bodies the decryption
// endpoint is known to produce.
type decryptedShape int

const (
	shapeJSON decryptedShape = iota
	shapeDelimited
	shapeRejected
	shapeUnknown
)

func classify(body string) decryptedShape {
	trimmed := strings.TrimSpace(body)
	if strings.Contains(trimmed, rejectedSignature) {
		return shapeRejected
	}
	if strings.HasPrefix(trimmed, "{") {
		return shapeJSON
	}
	if strings.Contains(trimmed, "&") {
		return shapeDelimited
	}
	return shapeUnknown
}

type decryptedJSON struct {
	RegID     string `json:"reg_id"`
	Category  string `json:"category"`
	TxnID     string `json:"txn_id"`
	TxnStatus string `json:"txnstatus"`
	Status    string `json:"status"`
	AltRegID  string `json:"regid"`
	AltTxnID  string `json:"txnid"`
}

// normalize converts the three observed response shapes — a JSON
// object, an ampersand-delimited string, or a raw error string — into
// one field set. Exhaustive over the classification; anything it cannot
// place is upstream-malformed.
func normalize(body string) (*ports.CallbackFields, error) {
	trimmed := strings.Trim(strings.TrimSpace(body), `"`)

	switch classify(trimmed) {
	case shapeRejected:
		// Expired or invalid encrypted string; not retryable.
		return nil, fmt.Errorf("gateway decrypt: %q: %w", truncate(trimmed, 120), domain.ErrUpstreamRejected)

	case shapeJSON:
		var dec decryptedJSON
		if err := json.Unmarshal([]byte(trimmed), &dec); err != nil {
			return nil, fmt.Errorf("gateway decrypt: bad json: %w", domain.ErrUpstreamMalformed)
		}
		fields := &ports.CallbackFields{
			RegID:      firstNonEmpty(dec.RegID, dec.AltRegID),
			Category:   dec.Category,
			TxnID:      firstNonEmpty(dec.TxnID, dec.AltTxnID),
			StatusCode: firstNonEmpty(dec.TxnStatus, dec.Status),
		}
		if fields.TxnID == "" {
			return nil, fmt.Errorf("gateway decrypt: json missing txn id: %w", domain.ErrUpstreamMalformed)
		}
		return fields, nil

	case shapeDelimited:
		// reg_id&category&txn_id&txnstatus
		parts := strings.Split(trimmed, "&")
		if len(parts) < 4 || parts[2] == "" {
			return nil, fmt.Errorf("gateway decrypt: short delimited body: %w", domain.ErrUpstreamMalformed)
		}
		return &ports.CallbackFields{
			RegID:      parts[0],
			Category:   parts[1],
			TxnID:      parts[2],
			StatusCode: parts[3],
		}, nil

	default:
		return nil, fmt.Errorf("gateway decrypt: unrecognized body %q: %w", truncate(trimmed, 120), domain.ErrUpstreamMalformed)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
