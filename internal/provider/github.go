package provider

import "github.com/Priya8975/webhook-ingest/internal/schema"

const (
	githubEventHeader     = "x-github-event"
	githubDeliveryHeader  = "x-github-delivery"
	githubSignatureHeader = "x-hub-signature-256"
)

var githubScheme = HMAC{Encoding: Hex, Prefix: "sha256="}

// GitHub reads the event type from X-GitHub-Event and signs with
// X-Hub-Signature-256: sha256=<hex>.
type GitHub struct {
	Base
}

func NewGitHub(secret string, schemas schema.Set) GitHub {
	return GitHub{Base: Base{ID: "github", SigningSecret: secret, Schemas: schemas}}
}

func (GitHub) EventType(headers map[string]string, _ Body) string {
	return headers[githubEventHeader]
}

func (GitHub) DeliveryID(headers map[string]string) string {
	return headers[githubDeliveryHeader]
}

func (GitHub) Verify(rawBody []byte, headers map[string]string, secret string) bool {
	return githubScheme.Verify(secret, rawBody, headers[githubSignatureHeader])
}

func (GitHub) Stamp(eventType, deliveryID string) map[string]string {
	return map[string]string{githubEventHeader: eventType, githubDeliveryHeader: deliveryID}
}

func (GitHub) Sign(rawBody []byte, secret string) map[string]string {
	return map[string]string{githubSignatureHeader: githubScheme.Sign(secret, rawBody)}
}
