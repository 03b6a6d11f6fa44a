package provider

var (
	_ Provider = GitHub{}
	_ Provider = Shopify{}
	_ Provider = Stripe{}
	_ Provider = Envelope{}
	_ Provider = Custom{}

	_ Signer = GitHub{}
	_ Signer = Shopify{}
	_ Signer = Stripe{}
	_ Signer = Envelope{}

	_ PayloadUnwrapper = Envelope{}
	_ PayloadUnwrapper = Custom{}
	_ ReplayKeyer      = Stripe{}
	_ ReplayKeyer      = Envelope{}
	_ ReplayKeyer      = Custom{}
	_ SecretPolicy     = Custom{}
	_ Stamper          = GitHub{}
	_ Stamper          = Shopify{}
	_ Stamper          = Envelope{}
)
