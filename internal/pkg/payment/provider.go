package payment

import (
	"encoding/json"
	"strings"
)

// ResponseKind tags a decoded provider response.
type ResponseKind string

const (
	ResponsePayment ResponseKind = "payment"
	ResponseError   ResponseKind = "error"
	ResponseUnknown ResponseKind = "unknown"
)

// ProviderID is a provider identifier that may arrive as a JSON number or
// string. It is always handled as a string.
type ProviderID string

func (p *ProviderID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*p = ProviderID(strings.TrimSpace(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*p = ProviderID(n.String())
	return nil
}

func (p ProviderID) String() string { return string(p) }

type TransactionData struct {
	QRCode       string `json:"qr_code,omitempty"`
	QRCodeBase64 string `json:"qr_code_base64,omitempty"`
	TicketURL    string `json:"ticket_url,omitempty"`
}

type PointOfInteraction struct {
	Type            string          `json:"type,omitempty"`
	TransactionData TransactionData `json:"transaction_data"`
}

// PaymentResource is the subset of a provider payment the service reads.
type PaymentResource struct {
	ID                 ProviderID         `json:"id"`
	Status             string             `json:"status"`
	StatusDetail       string             `json:"status_detail"`
	ExternalReference  string             `json:"external_reference"`
	TransactionAmount  float64            `json:"transaction_amount"`
	Installments       int                `json:"installments"`
	PaymentMethodID    string             `json:"payment_method_id"`
	PaymentTypeID      string             `json:"payment_type_id"`
	PointOfInteraction PointOfInteraction `json:"point_of_interaction"`
}

// ProviderErrorBody is the provider's error envelope.
type ProviderErrorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Status  int             `json:"status"`
	Cause   json.RawMessage `json:"cause,omitempty"`
}

// ProviderResponse is a decoded provider body: a payment, an error or
// something unrecognized. Raw always holds the original bytes and Extra the
// top level fields outside the known shape.
type ProviderResponse struct {
	Kind    ResponseKind
	Payment *PaymentResource
	Error   *ProviderErrorBody
	Extra   map[string]json.RawMessage
	Raw     json.RawMessage
}

var paymentFields = map[string]bool{
	"id": true, "status": true, "status_detail": true, "external_reference": true,
	"transaction_amount": true, "installments": true, "payment_method_id": true,
	"payment_type_id": true, "point_of_interaction": true,
}

var errorFields = map[string]bool{
	"message": true, "error": true, "status": true, "cause": true,
}

// DecodeProviderResponse never fails: unparseable bodies become ResponseUnknown
// and mistyped fields are left at their zero value.
func DecodeProviderResponse(raw []byte) *ProviderResponse {
	out := &ProviderResponse{Kind: ResponseUnknown, Raw: append(json.RawMessage(nil), raw...)}
	if len(raw) == 0 {
		return out
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out
	}

	if idRaw, ok := fields["id"]; ok && string(idRaw) != "null" {
		p := &PaymentResource{}
		decodeField(fields, "id", &p.ID)
		decodeField(fields, "status", &p.Status)
		decodeField(fields, "status_detail", &p.StatusDetail)
		decodeField(fields, "external_reference", &p.ExternalReference)
		decodeField(fields, "transaction_amount", &p.TransactionAmount)
		decodeField(fields, "installments", &p.Installments)
		decodeField(fields, "payment_method_id", &p.PaymentMethodID)
		decodeField(fields, "payment_type_id", &p.PaymentTypeID)
		decodeField(fields, "point_of_interaction", &p.PointOfInteraction)
		if p.ID != "" {
			out.Kind = ResponsePayment
			out.Payment = p
			out.Extra = extraFields(fields, paymentFields)
			return out
		}
	}

	_, hasMessage := fields["message"]
	_, hasError := fields["error"]
	if hasMessage || hasError {
		e := &ProviderErrorBody{}
		decodeField(fields, "message", &e.Message)
		decodeField(fields, "error", &e.Error)
		decodeField(fields, "status", &e.Status)
		if c, ok := fields["cause"]; ok {
			e.Cause = c
		}
		out.Kind = ResponseError
		out.Error = e
		out.Extra = extraFields(fields, errorFields)
		return out
	}

	out.Extra = fields
	return out
}

// Status returns the payment status or an empty string.
func (r *ProviderResponse) Status() string {
	if r == nil || r.Payment == nil {
		return ""
	}
	return r.Payment.Status
}

// PaymentID returns the provider payment id or an empty string.
func (r *ProviderResponse) PaymentID() string {
	if r == nil || r.Payment == nil {
		return ""
	}
	return r.Payment.ID.String()
}

// Message returns a short human description for logs.
func (r *ProviderResponse) Message() string {
	if r == nil {
		return ""
	}
	if r.Error != nil {
		if r.Error.Message != "" {
			return r.Error.Message
		}
		return r.Error.Error
	}
	return string(r.Kind)
}

func decodeField(fields map[string]json.RawMessage, name string, dst interface{}) {
	raw, ok := fields[name]
	if !ok {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

func extraFields(fields map[string]json.RawMessage, known map[string]bool) map[string]json.RawMessage {
	extra := make(map[string]json.RawMessage)
	for k, v := range fields {
		if !known[k] {
			extra[k] = v
		}
	}
	return extra
}
