// Package provider describes third-party webhook sources: where the event
// type and delivery id live, how the signature is checked, and whether the
// payload is wrapped in an envelope.
package provider

import (
	"github.com/Priya8975/webhook-ingest/internal/schema"
	"github.com/tidwall/gjson"
)

// Provider is the capability set the engine needs from every source.
// Implementations are long-lived values and must be safe for concurrent use.
type Provider interface {
	Name() string
	// Secret is the configured signing secret, or "" to fall back to the
	// environment.
	Secret() string
	Schema(eventType string) (schema.Schema, bool)
	// EventType returns "" when the request carries no event type.
	EventType(headers map[string]string, body Body) string
	DeliveryID(headers map[string]string) string
	// Verify must not panic on malformed input; a bad or missing signature
	// is simply false.
	Verify(rawBody []byte, headers map[string]string, secret string) bool
}

// PayloadUnwrapper is implemented by providers that wrap the event payload
// in an envelope.
type PayloadUnwrapper interface {
	Payload(body Body) any
}

// ReplayKeyer is implemented by providers whose replay key is not the
// delivery id header.
type ReplayKeyer interface {
	ReplayKey(headers map[string]string, body Body) string
}

// Signer produces the headers a sender attaches to a signed body.
type Signer interface {
	Sign(rawBody []byte, secret string) map[string]string
}

// Stamper returns the headers that carry the event type and delivery id
// for an outbound delivery. Providers that classify from the body only
// stamp what lives in headers.
type Stamper interface {
	Stamp(eventType, deliveryID string) map[string]string
}

// SecretPolicy lets a provider opt out of signature verification when no
// secret is configured anywhere.
type SecretPolicy interface {
	SecretRequired() bool
}

// Body is the request body in both raw and decoded form.
type Body struct {
	Raw   []byte
	Value any
}

// Field reads a gjson path from the raw body. Missing paths and non-scalar
// values without a string form return "".
func (b Body) Field(path string) string {
	if len(b.Raw) == 0 {
		return ""
	}
	r := gjson.GetBytes(b.Raw, path)
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	return r.String()
}

// Payload unwraps the body with p when it supports it, otherwise the decoded
// body is the payload.
func Payload(p Provider, body Body) any {
	if u, ok := p.(PayloadUnwrapper); ok {
		return u.Payload(body)
	}
	return body.Value
}

// ReplayKey returns the provider nonce when there is one, else deliveryID.
func ReplayKey(p Provider, headers map[string]string, body Body, deliveryID string) string {
	if k, ok := p.(ReplayKeyer); ok {
		if key := k.ReplayKey(headers, body); key != "" {
			return key
		}
	}
	return deliveryID
}

// SecretRequired defaults to true for providers without a SecretPolicy.
func SecretRequired(p Provider) bool {
	if sp, ok := p.(SecretPolicy); ok {
		return sp.SecretRequired()
	}
	return true
}

// Base carries the name, secret and schemas every bundled provider shares.
type Base struct {
	ID            string
	SigningSecret string
	Schemas       schema.Set
}

func (b Base) Name() string   { return b.ID }
func (b Base) Secret() string { return b.SigningSecret }

func (b Base) Schema(eventType string) (schema.Schema, bool) {
	return b.Schemas.Lookup(eventType)
}
