package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

const (
	defaultMercadoPagoAPIBaseURL = "https://api.mercadopago.com"
	defaultPaymentDescription    = "Pedido StoreFox"
	maxProviderBodyBytes         = 1 << 20
)

// ErrProviderUnconfigured is returned when no access token is set.
var ErrProviderUnconfigured = errors.New("MP_ACCESS_TOKEN is not configured")

// RejectedError is a non-2xx provider answer. Response holds the decoded body.
type RejectedError struct {
	StatusCode int
	Response   *ProviderResponse
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("mercadopago request failed: status=%d message=%s", e.StatusCode, e.Response.Message())
}

// Gateway is the payment provider as seen by the charge service and the
// webhook reconciler.
type Gateway interface {
	Configured() bool
	CreatePayment(ctx context.Context, req ChargeRequest) (*ProviderResponse, error)
	GetPayment(ctx context.Context, paymentID string) (*ProviderResponse, error)
	Ping(ctx context.Context) error
}

// MercadoPagoClient talks to the Mercado Pago payments REST API.
type MercadoPagoClient struct {
	AccessToken         string
	APIBaseURL          string
	NotificationURL     string
	StatementDescriptor string
	DefaultPayerEmail   string

	HTTPClient *http.Client
}

func NewMercadoPagoClientFromEnv() *MercadoPagoClient {
	notificationURL := strings.TrimSpace(env.GetEnv("MP_NOTIFICATION_URL", ""))
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if notificationURL == "" && base != "" {
		notificationURL = base + "/process-payment-webhook"
	}

	return &MercadoPagoClient{
		AccessToken:         strings.TrimSpace(env.GetEnv("MP_ACCESS_TOKEN", "")),
		APIBaseURL:          strings.TrimRight(strings.TrimSpace(env.GetEnv("MP_API_BASE_URL", defaultMercadoPagoAPIBaseURL)), "/"),
		NotificationURL:     notificationURL,
		StatementDescriptor: strings.TrimSpace(env.GetEnv("MP_STATEMENT_DESCRIPTOR", "")),
		DefaultPayerEmail:   strings.TrimSpace(env.GetEnv("MP_DEFAULT_PAYER_EMAIL", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *MercadoPagoClient) Configured() bool {
	return c != nil && strings.TrimSpace(c.AccessToken) != ""
}

type identificationBody struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type payerBody struct {
	Email          string             `json:"email,omitempty"`
	FirstName      string             `json:"first_name,omitempty"`
	LastName       string             `json:"last_name,omitempty"`
	Identification identificationBody `json:"identification"`
}

type createPaymentBody struct {
	TransactionAmount   float64   `json:"transaction_amount"`
	Description         string    `json:"description"`
	PaymentMethodID     string    `json:"payment_method_id"`
	Installments        int       `json:"installments"`
	Token               string    `json:"token,omitempty"`
	ExternalReference   string    `json:"external_reference"`
	NotificationURL     string    `json:"notification_url,omitempty"`
	StatementDescriptor string    `json:"statement_descriptor,omitempty"`
	Payer               payerBody `json:"payer"`
}

func (c *MercadoPagoClient) buildCreateBody(req ChargeRequest) createPaymentBody {
	methodID := models.PaymentMethodPix
	if req.Method == models.PaymentMethodCard {
		methodID = req.PaymentMethodID
	}
	description := req.Description
	if description == "" {
		description = defaultPaymentDescription
	}
	email := req.PayerEmail
	if email == "" {
		email = c.DefaultPayerEmail
	}
	first, last := splitName(req.PayerName)

	return createPaymentBody{
		TransactionAmount:   RoundAmount(req.Amount),
		Description:         description,
		PaymentMethodID:     methodID,
		Installments:        req.Installments,
		Token:               req.CardToken,
		ExternalReference:   req.IdempotencyKey,
		NotificationURL:     c.NotificationURL,
		StatementDescriptor: c.StatementDescriptor,
		Payer: payerBody{
			Email:     email,
			FirstName: first,
			LastName:  last,
			Identification: identificationBody{
				Type:   "CPF",
				Number: req.PayerCPF,
			},
		},
	}
}

// CreatePayment submits a charge. The idempotency key is forwarded so the
// provider deduplicates retries too. On a non-2xx answer both the decoded
// response and a *RejectedError are returned.
func (c *MercadoPagoClient) CreatePayment(ctx context.Context, req ChargeRequest) (*ProviderResponse, error) {
	if !c.Configured() {
		return nil, ErrProviderUnconfigured
	}
	payload, err := json.Marshal(c.buildCreateBody(req))
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"X-Idempotency-Key": req.IdempotencyKey}
	return c.do(ctx, http.MethodPost, "/v1/payments", bytes.NewReader(payload), headers)
}

// GetPayment fetches the authoritative state of a payment. Single attempt.
func (c *MercadoPagoClient) GetPayment(ctx context.Context, paymentID string) (*ProviderResponse, error) {
	if !c.Configured() {
		return nil, ErrProviderUnconfigured
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, errors.New("payment id is required")
	}
	return c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, nil)
}

// Ping checks that the access token is accepted.
func (c *MercadoPagoClient) Ping(ctx context.Context) error {
	if !c.Configured() {
		return ErrProviderUnconfigured
	}
	_, err := c.do(ctx, http.MethodGet, "/users/me", nil, nil)
	return err
}

func (c *MercadoPagoClient) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*ProviderResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxProviderBodyBytes))
	decoded := DecodeProviderResponse(raw)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decoded, &RejectedError{StatusCode: resp.StatusCode, Response: decoded}
	}
	return decoded, nil
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
