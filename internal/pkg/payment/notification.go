package payment

import (
	"encoding/json"
	"strings"
)

const topicPayment = "payment"

// Notification is the normalized form of a provider webhook delivery.
type Notification struct {
	EventID   string
	Topic     string
	Action    string
	PaymentID string
}

type notificationBody struct {
	ID       ProviderID `json:"id"`
	Type     string     `json:"type"`
	Topic    string     `json:"topic"`
	Action   string     `json:"action"`
	Resource string     `json:"resource"`
	Data     struct {
		ID ProviderID `json:"id"`
	} `json:"data"`
}

// ParseNotification reads a webhook from its body and query parameters. Both
// the v1 webhook shape ({"id","type","data":{"id"}}) and the legacy IPN shape
// (?topic=payment&id=...) are understood. An unparseable body is treated as
// empty.
func ParseNotification(body []byte, query map[string]string) Notification {
	var b notificationBody
	if len(body) > 0 {
		_ = json.Unmarshal(body, &b)
	}

	n := Notification{
		EventID: strings.TrimSpace(b.ID.String()),
		Action:  strings.TrimSpace(b.Action),
		Topic:   firstNonEmpty(b.Type, b.Topic, query["type"], query["topic"]),
	}

	n.PaymentID = firstNonEmpty(b.Data.ID.String(), query["data.id"])
	if n.PaymentID == "" && n.IsPayment() {
		n.PaymentID = firstNonEmpty(lastPathSegment(b.Resource), query["id"])
	}
	if n.Topic == "" && strings.HasPrefix(n.Action, topicPayment+".") {
		n.Topic = topicPayment
	}
	return n
}

// IsPayment reports whether the notification concerns a payment. A missing
// topic is treated as a payment.
func (n Notification) IsPayment() bool {
	return n.Topic == "" || strings.EqualFold(n.Topic, topicPayment)
}

func lastPathSegment(resource string) string {
	resource = strings.TrimRight(strings.TrimSpace(resource), "/")
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		return resource[i+1:]
	}
	return resource
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
