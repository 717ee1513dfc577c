package ratelimit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

// Bucket names used by the handlers.
const (
	BucketProcessPayment      = "process_payment"
	BucketPaymentWebhook      = "payment_webhook"
	BucketRegisterPushToken   = "register_push_token"
	BucketSendWelcomeEmail    = "send_welcome_email"
	BucketNewsletterSubscribe = "newsletter_subscribe"
)

// Rule is a limit per fixed window.
type Rule struct {
	Limit         int
	WindowMinutes int
}

var defaultRules = map[string]Rule{
	BucketProcessPayment:      {Limit: 10, WindowMinutes: 10},
	BucketPaymentWebhook:      {Limit: 120, WindowMinutes: 1},
	BucketRegisterPushToken:   {Limit: 20, WindowMinutes: 10},
	BucketSendWelcomeEmail:    {Limit: 5, WindowMinutes: 60},
	BucketNewsletterSubscribe: {Limit: 5, WindowMinutes: 60},
}

// Rules resolves the rule per bucket.
type Rules map[string]Rule

// LoadRules returns the default rules overridden by RATE_LIMIT_<BUCKET>
// variables of the form "limit/minutes", e.g. RATE_LIMIT_PROCESS_PAYMENT=10/10.
func LoadRules() Rules {
	rules := make(Rules, len(defaultRules))
	for bucket, rule := range defaultRules {
		rules[bucket] = rule
		raw := env.GetEnv("RATE_LIMIT_"+strings.ToUpper(bucket), "")
		if raw == "" {
			continue
		}
		parsed, err := ParseRule(raw)
		if err != nil {
			continue
		}
		rules[bucket] = parsed
	}
	return rules
}

// For returns the rule for bucket, falling back to the built-in default and
// finally to a conservative 10 per minute.
func (r Rules) For(bucket string) Rule {
	if rule, ok := r[bucket]; ok {
		return rule
	}
	if rule, ok := defaultRules[bucket]; ok {
		return rule
	}
	return Rule{Limit: 10, WindowMinutes: 1}
}

// ParseRule parses "limit/minutes".
func ParseRule(raw string) (Rule, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 2 {
		return Rule{}, fmt.Errorf("invalid rate limit rule %q, want limit/minutes", raw)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || limit < 1 {
		return Rule{}, fmt.Errorf("invalid rate limit %q", parts[0])
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || minutes < 1 {
		return Rule{}, fmt.Errorf("invalid rate limit window %q", parts[1])
	}
	return Rule{Limit: limit, WindowMinutes: minutes}, nil
}
