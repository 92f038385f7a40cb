package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/erinfolamirukayat/theweddingplace/internal/config"
	"github.com/erinfolamirukayat/theweddingplace/internal/contribution/domain"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.paystack.co"

// Client talks to Paystack's transaction API. Amounts cross this boundary
// in naira and are converted to kobo here, in exactly one place.
type Client struct {
	secretKey   string
	baseURL     string
	callbackURL string
	httpClient  *http.Client
	log         *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) domain.Gateway {
	base := strings.TrimRight(strings.TrimSpace(cfg.Paystack.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := time.Duration(cfg.Paystack.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		secretKey:   strings.TrimSpace(cfg.Paystack.SecretKey),
		baseURL:     base,
		callbackURL: strings.TrimSpace(cfg.Paystack.CallbackURL),
		httpClient:  &http.Client{Timeout: timeout},
		log:         log.Named("gateway.paystack"),
	}
}

func (c *Client) Provider() string { return "paystack" }

type initializeRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, email string, amount float64, metadata domain.Metadata) (*domain.GatewayCheckout, error) {
	body, err := json.Marshal(initializeRequest{
		Email:       email,
		Amount:      int64(math.Round(amount * 100)),
		CallbackURL: c.callbackURL,
		Metadata:    encodeMetadata(metadata),
	})
	if err != nil {
		return nil, err
	}

	var out initializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, err
	}
	if !out.Status || out.Data.Reference == "" || out.Data.AuthorizationURL == "" {
		c.log.Warn("initialize rejected", zap.String("message", out.Message))
		return nil, domain.ErrGatewayUnavailable
	}
	return &domain.GatewayCheckout{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        out.Data.Reference,
	}, nil
}

type transactionData struct {
	Status          string            `json:"status"`
	Reference       string            `json:"reference"`
	Amount          int64             `json:"amount"`
	GatewayResponse string            `json:"gateway_response"`
	Metadata        map[string]string `json:"metadata"`
}

type verifyResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    transactionData `json:"data"`
}

func (c *Client) Verify(ctx context.Context, reference string) (*domain.Verification, error) {
	var out verifyResponse
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out); err != nil {
		return nil, err
	}
	if !out.Status || out.Data.Reference == "" {
		c.log.Warn("verify rejected", zap.String("reference", reference), zap.String("message", out.Message))
		return nil, domain.ErrGatewayUnavailable
	}

	status := domain.VerifyPending
	switch out.Data.Status {
	case "success":
		status = domain.VerifySucceeded
	case "failed", "abandoned", "reversed":
		status = domain.VerifyFailed
	}
	return &domain.Verification{
		Status:          status,
		Reference:       out.Data.Reference,
		Amount:          out.Data.Amount,
		Metadata:        decodeMetadata(out.Data.Metadata),
		GatewayResponse: out.Data.GatewayResponse,
	}, nil
}

func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || c.secretKey == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

type webhookEnvelope struct {
	Event string          `json:"event"`
	Data  transactionData `json:"data"`
}

func (c *Client) ParseWebhookEvent(payload []byte) (*domain.WebhookEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	var eventType domain.EventType
	switch strings.TrimSpace(envelope.Event) {
	case "charge.success":
		eventType = domain.EventChargeSuccess
	case "charge.failed":
		eventType = domain.EventChargeFailed
	default:
		return nil, domain.ErrEventIgnored
	}
	if strings.TrimSpace(envelope.Data.Reference) == "" {
		return nil, domain.ErrInvalidPayload
	}

	return &domain.WebhookEvent{
		Type:      eventType,
		Reference: envelope.Data.Reference,
		Amount:    envelope.Data.Amount,
		Metadata:  decodeMetadata(envelope.Data.Metadata),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.secretKey == "" {
		return domain.ErrGatewayUnavailable
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// timeouts and refused connections say nothing about the charge
		c.log.Warn("request failed", zap.String("path", path), zap.Error(err))
		return domain.ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.log.Warn("unexpected status", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return domain.ErrGatewayUnavailable
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.ErrGatewayUnavailable
	}
	return nil
}

func encodeMetadata(metadata domain.Metadata) map[string]string {
	return map[string]string{
		"registry_item_id": metadata.RegistryItemID.String(),
		"name":             metadata.Name,
		"email":            metadata.Email,
		"message":          metadata.Message,
	}
}

func decodeMetadata(values map[string]string) domain.Metadata {
	metadata := domain.Metadata{
		Name:    values["name"],
		Email:   values["email"],
		Message: values["message"],
	}
	if raw := strings.TrimSpace(values["registry_item_id"]); raw != "" {
		if id, err := snowflake.ParseString(raw); err == nil {
			metadata.RegistryItemID = id
		}
	}
	return metadata
}
