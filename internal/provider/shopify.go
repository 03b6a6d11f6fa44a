package provider

import "github.com/Priya8975/webhook-ingest/internal/schema"

const (
	shopifyTopicHeader     = "x-shopify-topic"
	shopifyDeliveryHeader  = "x-shopify-webhook-id"
	shopifySignatureHeader = "x-shopify-hmac-sha256"
)

var shopifyScheme = HMAC{Encoding: Base64}

// Shopify carries the topic in a header and a base64 HMAC-SHA256.
type Shopify struct {
	Base
}

func NewShopify(secret string, schemas schema.Set) Shopify {
	return Shopify{Base: Base{ID: "shopify", SigningSecret: secret, Schemas: schemas}}
}

func (Shopify) EventType(headers map[string]string, _ Body) string {
	return headers[shopifyTopicHeader]
}

func (Shopify) DeliveryID(headers map[string]string) string {
	return headers[shopifyDeliveryHeader]
}

func (Shopify) Verify(rawBody []byte, headers map[string]string, secret string) bool {
	return shopifyScheme.Verify(secret, rawBody, headers[shopifySignatureHeader])
}

func (Shopify) Stamp(eventType, deliveryID string) map[string]string {
	return map[string]string{shopifyTopicHeader: eventType, shopifyDeliveryHeader: deliveryID}
}

func (Shopify) Sign(rawBody []byte, secret string) map[string]string {
	return map[string]string{shopifySignatureHeader: shopifyScheme.Sign(secret, rawBody)}
}
