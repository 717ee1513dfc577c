package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FlexFloat accepts a JSON number or a numeric string. Strings such as "NaN"
// or "Infinity" decode to the matching float so validation can reject them.
type FlexFloat struct {
	Value float64
	Set   bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			f.Value, f.Set = v, true
			return nil
		}
		return fmt.Errorf("invalid number %q", s)
	}
	f.Value, f.Set = v, true
	return nil
}

func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Customer is the payer as sent by the storefront.
type Customer struct {
	Name  string `json:"name" validate:"max=150"`
	Email string `json:"email" validate:"omitempty,email,max=200"`
	CPF   string `json:"cpf"`
}

// ChargeInput is the raw body of POST /process-payment.
type ChargeInput struct {
	Method          string     `json:"method"`
	Amount          FlexFloat  `json:"amount"`
	Installments    *FlexFloat `json:"installments,omitempty"`
	IdempotencyKey  string     `json:"idempotencyKey" validate:"required,min=8,max=128"`
	Customer        Customer   `json:"customer"`
	CardToken       string     `json:"cardToken,omitempty" validate:"max=255"`
	PaymentMethodID string     `json:"paymentMethodId,omitempty" validate:"max=50"`
	Description     string     `json:"description,omitempty" validate:"max=255"`
}

// ChargeRequest is a validated, normalized charge ready for the provider.
type ChargeRequest struct {
	IdempotencyKey  string
	Method          string
	Amount          float64
	Installments    int
	PayerName       string
	PayerEmail      string
	PayerCPF        string
	CardToken       string
	PaymentMethodID string
	Description     string
}

// ChargeResult is what the charge endpoint answers with.
type ChargeResult struct {
	AttemptID    string `json:"-"`
	PaymentID    string `json:"paymentId,omitempty"`
	Status       string `json:"status,omitempty"`
	StatusDetail string `json:"statusDetail,omitempty"`
	QRCode       string `json:"qrCode,omitempty"`
	QRCodeBase64 string `json:"qrCodeBase64,omitempty"`
	Cached       bool   `json:"-"`
}

// AttemptUpdate is a reconciliation write against an existing attempt.
// ProviderPaymentID, when set, is backfilled onto the row.
type AttemptUpdate struct {
	Status            string
	StatusDetail      string
	ProviderPaymentID string
	ResponsePayload   []byte
}
