package provider

// Custom builds a provider from plain functions. Nil functions fall back to
// "absent": no event type, no delivery id, failed verification, identity
// payload.
type Custom struct {
	Base
	// Unsigned lets requests through unverified when no secret is found.
	Unsigned bool

	EventTypeFunc  func(headers map[string]string, body Body) string
	DeliveryIDFunc func(headers map[string]string) string
	VerifyFunc     func(rawBody []byte, headers map[string]string, secret string) bool
	PayloadFunc    func(body Body) any
	ReplayKeyFunc  func(headers map[string]string, body Body) string
}

func (c Custom) EventType(headers map[string]string, body Body) string {
	if c.EventTypeFunc == nil {
		return ""
	}
	return c.EventTypeFunc(headers, body)
}

func (c Custom) DeliveryID(headers map[string]string) string {
	if c.DeliveryIDFunc == nil {
		return ""
	}
	return c.DeliveryIDFunc(headers)
}

func (c Custom) Verify(rawBody []byte, headers map[string]string, secret string) bool {
	if c.VerifyFunc == nil {
		return false
	}
	return c.VerifyFunc(rawBody, headers, secret)
}

func (c Custom) Payload(body Body) any {
	if c.PayloadFunc == nil {
		return body.Value
	}
	return c.PayloadFunc(body)
}

func (c Custom) ReplayKey(headers map[string]string, body Body) string {
	if c.ReplayKeyFunc == nil {
		return ""
	}
	return c.ReplayKeyFunc(headers, body)
}

func (c Custom) SecretRequired() bool {
	return !c.Unsigned
}
