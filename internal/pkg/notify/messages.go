package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuelReschke/StoreFox/app/models"
)

// Event types written by the storefront.
const (
	EventOrderCreated         = "order_created"
	EventOrderStatusChanged   = "order_status_changed"
	EventPaymentApproved      = "payment_approved"
	EventPaymentRejected      = "payment_rejected"
	EventContactMessage       = "contact_message"
	EventNewsletterSubscribed = "newsletter_subscribed"
)

// Message is the title and body of a push campaign.
type Message struct {
	Title string
	Body  string
}

type messageTemplate func(p payload) Message

var messageTable = map[string]messageTemplate{
	EventOrderCreated: func(p payload) Message {
		return Message{
			Title: "Novo pedido recebido",
			Body:  fmt.Sprintf("Pedido %s de %s foi criado.", p.order(), p.str("Cliente", "customer_name", "customerName", "name")),
		}
	},
	EventOrderStatusChanged: func(p payload) Message {
		return Message{
			Title: "Pedido atualizado",
			Body:  fmt.Sprintf("Pedido %s agora está: %s.", p.order(), statusLabel(p.str("", "status", "new_status", "newStatus"))),
		}
	},
	EventPaymentApproved: func(p payload) Message {
		return Message{
			Title: "Pagamento aprovado",
			Body:  fmt.Sprintf("O pagamento do pedido %s foi aprovado.", p.order()),
		}
	},
	EventPaymentRejected: func(p payload) Message {
		return Message{
			Title: "Pagamento recusado",
			Body:  fmt.Sprintf("O pagamento do pedido %s foi recusado.", p.order()),
		}
	},
	EventContactMessage: func(p payload) Message {
		return Message{
			Title: "Nova mensagem de contato",
			Body:  fmt.Sprintf("%s enviou uma mensagem pelo site.", p.str("Um visitante", "name", "email")),
		}
	},
	EventNewsletterSubscribed: func(p payload) Message {
		return Message{
			Title: "Nova inscrição na newsletter",
			Body:  fmt.Sprintf("%s se inscreveu na newsletter.", p.str("Um visitante", "email", "name")),
		}
	},
}

var fallbackMessage = Message{
	Title: "Nova atualização",
	Body:  "Você tem uma nova notificação da loja.",
}

// MessageFor maps an event to its campaign text. Unknown event types get a
// generic message.
func MessageFor(eventType string, p payload) Message {
	tmpl, ok := messageTable[eventType]
	if !ok {
		return fallbackMessage
	}
	return tmpl(p)
}

// AudienceFor returns the campaign audience of an event type.
func AudienceFor(eventType string) string {
	if eventType == EventContactMessage {
		return models.AudienceAdmins
	}
	return models.AudienceAll
}

var statusLabels = map[string]string{
	"pending":    "pendente",
	"paid":       "pago",
	"processing": "em preparação",
	"shipped":    "enviado",
	"delivered":  "entregue",
	"cancelled":  "cancelado",
	"canceled":   "cancelado",
}

func statusLabel(status string) string {
	if label, ok := statusLabels[strings.ToLower(status)]; ok {
		return label
	}
	if status == "" {
		return "atualizado"
	}
	return status
}

// payload is a loosely typed event payload.
type payload map[string]interface{}

func decodePayload(raw []byte) (payload, error) {
	p := payload{}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	return p, nil
}

// str returns the first non-empty value among keys, or def.
func (p payload) str(def string, keys ...string) string {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return def
}

func (p payload) order() string {
	ref := p.str("", "order_number", "orderNumber", "order_id", "orderId")
	if ref == "" {
		return "sem número"
	}
	return "#" + ref
}
