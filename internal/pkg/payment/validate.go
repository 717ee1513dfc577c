package payment

import (
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
)

const cpfLength = 11

var validate = validator.New()

// ValidateCharge checks a charge input and returns the normalized request.
// Nothing is persisted for invalid input.
func ValidateCharge(in ChargeInput) (*ChargeRequest, error) {
	if in.Method != models.PaymentMethodPix && in.Method != models.PaymentMethodCard {
		return nil, apperror.Validation("invalid_method", "method must be pix or card")
	}

	amount, err := ValidateAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	in.IdempotencyKey = key
	if err := validate.Struct(in); err != nil {
		return nil, fieldError(err)
	}

	cpf := NormalizeCPF(in.Customer.CPF)
	if len(cpf) != cpfLength {
		return nil, apperror.Validation("invalid_cpf", "cpf must have exactly 11 digits")
	}

	installments, err := NormalizeInstallments(in.Method, in.Installments)
	if err != nil {
		return nil, err
	}

	req := &ChargeRequest{
		IdempotencyKey: key,
		Method:         in.Method,
		Amount:         amount,
		Installments:   installments,
		PayerName:      strings.TrimSpace(in.Customer.Name),
		PayerEmail:     strings.TrimSpace(in.Customer.Email),
		PayerCPF:       cpf,
		Description:    strings.TrimSpace(in.Description),
	}

	if in.Method == models.PaymentMethodCard {
		req.CardToken = strings.TrimSpace(in.CardToken)
		req.PaymentMethodID = strings.TrimSpace(in.PaymentMethodID)
		if req.CardToken == "" || req.PaymentMethodID == "" {
			return nil, apperror.Validation("missing_card_token", "card payments require cardToken and paymentMethodId")
		}
	}
	return req, nil
}

// ValidateAmount rejects missing, non-finite and non-positive amounts and
// rounds the rest to two decimals.
func ValidateAmount(amount FlexFloat) (float64, error) {
	v := amount.Value
	if !amount.Set || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, apperror.Validation("invalid_amount", "amount must be a finite number greater than zero")
	}
	return RoundAmount(v), nil
}

// RoundAmount rounds to two decimal places.
func RoundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}

// NormalizeInstallments forces 1 for non-card methods and floors card
// installments to at least 1. The provider decides which counts a card
// accepts; only counts that do not fit the column are rejected here.
func NormalizeInstallments(method string, installments *FlexFloat) (int, error) {
	if method != models.PaymentMethodCard || installments == nil || !installments.Set {
		return 1, nil
	}
	v := installments.Value
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 1 {
		return 1, nil
	}
	if v > math.MaxInt32 {
		return 0, apperror.Validation("invalid_installments", "installments out of range")
	}
	return int(math.Floor(v)), nil
}

// NormalizeCPF strips everything but ASCII digits.
func NormalizeCPF(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func fieldError(err error) error {
	var verrs validator.ValidationErrors
	if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "IdempotencyKey":
			return apperror.Validation("invalid_idempotency_key", "idempotencyKey must have between 8 and 128 characters")
		case "Email", "Name":
			return apperror.Validation("invalid_customer", "customer "+strings.ToLower(verrs[0].Field())+" is invalid")
		}
		return apperror.Validation("invalid_"+strings.ToLower(verrs[0].Field()), verrs[0].Error())
	}
	return apperror.Validation("invalid_body", err.Error())
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}
	return ok
}
