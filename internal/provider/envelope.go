package provider

import (
	"strings"

	"github.com/Priya8975/webhook-ingest/internal/schema"
)

const (
	defaultEnvelopeSignatureHeader = "x-webhook-signature"
	defaultEnvelopeDeliveryHeader  = "x-webhook-id"
)

// Envelope is a provider whose body is {"type", "payload", "nonce"}. The
// payload is handed to schemas with the nonce merged in so handlers can use
// it for idempotency.
type Envelope struct {
	Base
	SignatureHeader string
	DeliveryHeader  string
	Scheme          HMAC
}

func NewEnvelope(name, secret string, schemas schema.Set) Envelope {
	return Envelope{
		Base:            Base{ID: name, SigningSecret: secret, Schemas: schemas},
		SignatureHeader: defaultEnvelopeSignatureHeader,
		DeliveryHeader:  defaultEnvelopeDeliveryHeader,
		Scheme:          HMAC{Encoding: Hex},
	}
}

func (e Envelope) EventType(_ map[string]string, body Body) string {
	return body.Field("type")
}

func (e Envelope) DeliveryID(headers map[string]string) string {
	return headers[e.deliveryHeader()]
}

func (e Envelope) ReplayKey(_ map[string]string, body Body) string {
	return body.Field("nonce")
}

func (e Envelope) Verify(rawBody []byte, headers map[string]string, secret string) bool {
	return e.Scheme.Verify(secret, rawBody, headers[e.signatureHeader()])
}

func (e Envelope) Stamp(_, deliveryID string) map[string]string {
	return map[string]string{e.deliveryHeader(): deliveryID}
}

func (e Envelope) Sign(rawBody []byte, secret string) map[string]string {
	return map[string]string{e.signatureHeader(): e.Scheme.Sign(secret, rawBody)}
}

// Payload returns the envelope's payload with "nonce" copied onto it. A
// body without a payload field is returned unchanged.
func (e Envelope) Payload(body Body) any {
	envelope, ok := body.Value.(map[string]any)
	if !ok {
		return body.Value
	}
	payload, ok := envelope["payload"]
	if !ok {
		return body.Value
	}
	nonce, hasNonce := envelope["nonce"]
	fields, isObject := payload.(map[string]any)
	if !hasNonce || !isObject {
		return payload
	}
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["nonce"] = nonce
	return merged
}

func (e Envelope) signatureHeader() string {
	if e.SignatureHeader != "" {
		return strings.ToLower(e.SignatureHeader)
	}
	return defaultEnvelopeSignatureHeader
}

func (e Envelope) deliveryHeader() string {
	if e.DeliveryHeader != "" {
		return strings.ToLower(e.DeliveryHeader)
	}
	return defaultEnvelopeDeliveryHeader
}
