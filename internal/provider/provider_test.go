package provider

import (
	"encoding/json"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/Priya8975/webhook-ingest/internal/schema"
)

func decodeBody(t *testing.T, raw string) Body {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return Body{Raw: []byte(raw), Value: v}
}

func TestGitHub_ClassifyAndVerify(t *testing.T) {
	gh := NewGitHub("s3cr3t", nil)
	body := []byte(`{"ref":"refs/heads/main"}`)
	headers := map[string]string{
		"x-github-event":    "push",
		"x-github-delivery": "d-1",
	}
	for k, v := range gh.Sign(body, "s3cr3t") {
		headers[k] = v
	}

	if got := gh.Name(); got != "github" {
		t.Errorf("Name() = %q, want %q", got, "github")
	}
	if got := gh.EventType(headers, Body{}); got != "push" {
		t.Errorf("EventType() = %q, want %q", got, "push")
	}
	if got := gh.DeliveryID(headers); got != "d-1" {
		t.Errorf("DeliveryID() = %q, want %q", got, "d-1")
	}
	if !gh.Verify(body, headers, "s3cr3t") {
		t.Error("valid signature should verify")
	}

	headers["x-hub-signature-256"] = "sha256=deadbeef"
	if gh.Verify(body, headers, "s3cr3t") {
		t.Error("sha256=deadbeef should not verify")
	}
	delete(headers, "x-hub-signature-256")
	if gh.Verify(body, headers, "s3cr3t") {
		t.Error("missing signature header should not verify")
	}
}

func TestShopify_Base64Signature(t *testing.T) {
	sh := NewShopify("shpss", nil)
	body := []byte(`{"id":42}`)
	headers := sh.Sign(body, "shpss")
	headers["x-shopify-topic"] = "orders/create"

	if !sh.Verify(body, headers, "shpss") {
		t.Error("valid base64 signature should verify")
	}
	if sh.Verify([]byte(`{"id":43}`), headers, "shpss") {
		t.Error("tampered body should not verify")
	}
	if got := sh.EventType(headers, Body{}); got != "orders/create" {
		t.Errorf("EventType() = %q, want %q", got, "orders/create")
	}
}

func TestStripe_TimestampTolerance(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	st := NewStripe("whsec", nil)
	st.Now = func() time.Time { return now }
	body := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	headers := st.Sign(body, "whsec")

	if !st.Verify(body, headers, "whsec") {
		t.Fatal("fresh signature should verify")
	}

	st.Now = func() time.Time { return now.Add(6 * time.Minute) }
	if st.Verify(body, headers, "whsec") {
		t.Error("signature outside tolerance should fail")
	}

	st.Now = func() time.Time { return now }
	headers["stripe-signature"] = "t=" + strconv.FormatInt(now.Unix(), 10)
	if st.Verify(body, headers, "whsec") {
		t.Error("header without v1 should fail")
	}
	headers["stripe-signature"] = "garbage"
	if st.Verify(body, headers, "whsec") {
		t.Error("malformed header should fail")
	}
}

func TestStripe_MultipleSignaturesDuringRotation(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	st := NewStripe("", nil)
	st.Now = func() time.Time { return now }
	body := []byte(`{"id":"evt_2"}`)

	current := st.Sign(body, "new-secret")["stripe-signature"]
	old := st.Sign(body, "old-secret")["stripe-signature"]
	_, oldSigs := parseStripeHeader(old)
	headers := map[string]string{"stripe-signature": current + ",v1=" + oldSigs[0]}

	if !st.Verify(body, headers, "old-secret") {
		t.Error("any matching v1 signature should verify")
	}
}

func TestStripe_BodyClassification(t *testing.T) {
	st := NewStripe("whsec", nil)
	body := decodeBody(t, `{"id":"evt_9","type":"customer.created"}`)

	if got := st.EventType(nil, body); got != "customer.created" {
		t.Errorf("EventType() = %q, want %q", got, "customer.created")
	}
	if got := ReplayKey(st, nil, body, ""); got != "evt_9" {
		t.Errorf("ReplayKey() = %q, want %q", got, "evt_9")
	}
}

func TestEnvelope_PayloadMergesNonce(t *testing.T) {
	env := NewEnvelope("docs", "secret", nil)
	body := decodeBody(t, `{"type":"document_status_updated","payload":{"document_id":"d1","status":"ready"},"nonce":"n1"}`)

	if got := env.EventType(nil, body); got != "document_status_updated" {
		t.Errorf("EventType() = %q, want %q", got, "document_status_updated")
	}

	got := Payload(env, body)
	want := map[string]any{"document_id": "d1", "status": "ready", "nonce": "n1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Payload() = %v, want %v", got, want)
	}

	original := body.Value.(map[string]any)["payload"].(map[string]any)
	if _, leaked := original["nonce"]; leaked {
		t.Error("unwrapping must not mutate the decoded body")
	}

	if got := ReplayKey(env, nil, body, "delivery"); got != "n1" {
		t.Errorf("ReplayKey() = %q, want %q", got, "n1")
	}
}

func TestEnvelope_CanonicalHeaderNames(t *testing.T) {
	env := NewEnvelope("docs", "secret", nil)
	env.SignatureHeader = "X-Webhook-Signature"
	env.DeliveryHeader = "X-Webhook-Id"
	raw := []byte(`{"type":"x","payload":{},"nonce":"n1"}`)

	signed := env.Sign(raw, "secret")
	sig, ok := signed["x-webhook-signature"]
	if !ok {
		t.Fatalf("Sign() headers = %v, want lower-case key", signed)
	}
	headers := map[string]string{"x-webhook-signature": sig, "x-webhook-id": "d-9"}
	if !env.Verify(raw, headers, "secret") {
		t.Error("Verify() should read the lower-cased signature header")
	}
	if got := env.DeliveryID(headers); got != "d-9" {
		t.Errorf("DeliveryID() = %q, want %q", got, "d-9")
	}
	if got := env.Stamp("", "d-9"); got["x-webhook-id"] != "d-9" {
		t.Errorf("Stamp() = %v, want lower-case delivery header", got)
	}
}

func TestEnvelope_PayloadWithoutNonceOrEnvelope(t *testing.T) {
	env := NewEnvelope("docs", "secret", nil)

	noNonce := decodeBody(t, `{"type":"x","payload":{"a":1}}`)
	if got := Payload(env, noNonce); !reflect.DeepEqual(got, map[string]any{"a": float64(1)}) {
		t.Errorf("Payload() = %v", got)
	}

	bare := decodeBody(t, `{"a":1}`)
	if got := Payload(env, bare); !reflect.DeepEqual(got, bare.Value) {
		t.Errorf("Payload() without envelope = %v, want body unchanged", got)
	}

	if got := ReplayKey(env, nil, noNonce, "delivery-7"); got != "delivery-7" {
		t.Errorf("ReplayKey() = %q, want delivery id fallback", got)
	}
}

func TestCustom_Defaults(t *testing.T) {
	c := Custom{Base: Base{ID: "acme", Schemas: schema.Set{"ping": schema.Any()}}}
	body := decodeBody(t, `{"x":1}`)

	if c.EventType(nil, body) != "" || c.DeliveryID(nil) != "" {
		t.Error("nil funcs should report absent values")
	}
	if c.Verify(nil, nil, "s") {
		t.Error("nil VerifyFunc must fail verification")
	}
	if !reflect.DeepEqual(Payload(c, body), body.Value) {
		t.Error("nil PayloadFunc should be identity")
	}
	if !SecretRequired(c) {
		t.Error("custom providers require a secret by default")
	}
	c.Unsigned = true
	if SecretRequired(c) {
		t.Error("Unsigned providers should not require a secret")
	}
	if _, ok := c.Schema("ping"); !ok {
		t.Error("schema lookup should use Base.Schemas")
	}
	if !SecretRequired(NewGitHub("", nil)) {
		t.Error("providers without a SecretPolicy require a secret")
	}
}

func TestBody_Field(t *testing.T) {
	body := decodeBody(t, `{"data":{"object":{"type":"charge"}},"n":null}`)

	if got := body.Field("data.object.type"); got != "charge" {
		t.Errorf("Field() = %q, want %q", got, "charge")
	}
	if got := body.Field("missing"); got != "" {
		t.Errorf("missing Field() = %q, want empty", got)
	}
	if got := body.Field("n"); got != "" {
		t.Errorf("null Field() = %q, want empty", got)
	}
	if got := (Body{}).Field("a"); got != "" {
		t.Errorf("empty body Field() = %q, want empty", got)
	}
}
