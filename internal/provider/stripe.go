package provider

import (
	"strconv"
	"strings"
	"time"

	"github.com/Priya8975/webhook-ingest/internal/schema"
)

const stripeSignatureHeader = "stripe-signature"

const defaultStripeTolerance = 5 * time.Minute

var stripeScheme = HMAC{Encoding: Hex}

// Stripe keeps the event type in the body and signs "<t>.<body>" with a
// timestamped header: t=<unix>,v1=<hex>[,v1=<hex>...].
type Stripe struct {
	Base
	Tolerance time.Duration
	Now       func() time.Time
}

func NewStripe(secret string, schemas schema.Set) Stripe {
	return Stripe{
		Base:      Base{ID: "stripe", SigningSecret: secret, Schemas: schemas},
		Tolerance: defaultStripeTolerance,
	}
}

func (Stripe) EventType(_ map[string]string, body Body) string {
	return body.Field("type")
}

// DeliveryID is empty: Stripe identifies deliveries by the event id in the
// body, which ReplayKey returns instead.
func (Stripe) DeliveryID(map[string]string) string {
	return ""
}

func (Stripe) ReplayKey(_ map[string]string, body Body) string {
	return body.Field("id")
}

func (s Stripe) Verify(rawBody []byte, headers map[string]string, secret string) bool {
	ts, signatures := parseStripeHeader(headers[stripeSignatureHeader])
	if ts == "" || len(signatures) == 0 {
		return false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := s.now().Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > s.tolerance() {
		return false
	}
	signed := stripeSignedPayload(ts, rawBody)
	for _, sig := range signatures {
		if stripeScheme.Verify(secret, signed, sig) {
			return true
		}
	}
	return false
}

func (s Stripe) Sign(rawBody []byte, secret string) map[string]string {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	sig := stripeScheme.Sign(secret, stripeSignedPayload(ts, rawBody))
	return map[string]string{stripeSignatureHeader: "t=" + ts + ",v1=" + sig}
}

func (s Stripe) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Stripe) tolerance() time.Duration {
	if s.Tolerance > 0 {
		return s.Tolerance
	}
	return defaultStripeTolerance
}

func stripeSignedPayload(ts string, rawBody []byte) []byte {
	out := make([]byte, 0, len(ts)+1+len(rawBody))
	out = append(out, ts...)
	out = append(out, '.')
	return append(out, rawBody...)
}

func parseStripeHeader(header string) (string, []string) {
	var (
		ts   string
		sigs []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			sigs = append(sigs, value)
		}
	}
	return ts, sigs
}
