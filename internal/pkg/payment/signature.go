package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// VerifyWebhookSignature accepts either the shared secret verbatim or a
// Mercado Pago "ts=...,v1=..." header whose v1 is the HMAC-SHA256 of the
// manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func VerifyWebhookSignature(signatureHeader, webhookSecret, requestID, dataID string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	if subtle.ConstantTimeCompare([]byte(sig), []byte(secret)) == 1 {
		return true
	}

	ts, v1 := parseSignatureHeader(sig)
	if ts == "" || v1 == "" {
		return false
	}
	expected, err := hex.DecodeString(strings.ToLower(v1))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureManifest(dataID, requestID, ts)))
	return hmac.Equal(mac.Sum(nil), expected)
}

func parseSignatureHeader(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	return ts, v1
}

// Absent values are left out of the manifest.
func signatureManifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")
	return b.String()
}
