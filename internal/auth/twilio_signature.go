package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ValidateTwilioSignature checks the X-Twilio-Signature header of a form webhook.
// https://www.twilio.com/docs/usage/security#validating-requests
//
// webhookURL must be the exact public URL Twilio was configured with.
func ValidateTwilioSignature(authToken, webhookURL string, form url.Values, signature string) error {
	if signature == "" {
		return fmt.Errorf("signature header is missing")
	}
	if authToken == "" {
		return fmt.Errorf("auth token is not configured")
	}

	expected := TwilioSignature(authToken, webhookURL, form)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return fmt.Errorf("invalid signature: request integrity check failed")
	}
	return nil
}

// TwilioSignature = base64(HMAC-SHA1(authToken, url + sorted key/value pairs)).
func TwilioSignature(authToken, webhookURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(webhookURL)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	return base64.StdEncoding.EncodeToString(hmacSHA1([]byte(authToken), []byte(b.String())))
}

func hmacSHA1(key, data []byte) []byte {
	h := hmac.New(sha1.New, key)
	h.Write(data)
	return h.Sum(nil)
}
