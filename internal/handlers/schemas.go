package handlers

import "github.com/Priya8975/webhook-ingest/internal/schema"

var githubPushSchema = schema.MustJSON[GitHubPush](`{
	"type": "object",
	"required": ["ref", "repository"],
	"properties": {
		"ref": {"type": "string", "minLength": 1},
		"before": {"type": "string"},
		"after": {"type": "string"},
		"repository": {
			"type": "object",
			"required": ["full_name"],
			"properties": {"full_name": {"type": "string"}}
		},
		"commits": {"type": "array", "items": {"type": "object"}}
	}
}`)

var githubPingSchema = schema.MustJSON[GitHubPing](`{
	"type": "object",
	"required": ["zen"],
	"properties": {
		"zen": {"type": "string"},
		"hook_id": {"type": "number"}
	}
}`)

var shopifyOrderSchema = schema.MustJSON[ShopifyOrder](`{
	"type": "object",
	"required": ["id", "line_items"],
	"properties": {
		"id": {"type": "number"},
		"email": {"type": "string"},
		"currency": {"type": "string"},
		"total_price": {"type": "string"},
		"line_items": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"sku": {"type": "string"},
					"quantity": {"type": "number", "minimum": 1}
				}
			}
		}
	}
}`)

var stripeEventSchema = schema.MustJSON[StripeEvent](`{
	"type": "object",
	"required": ["id", "type", "data"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"type": {"type": "string"},
		"created": {"type": "number"},
		"data": {
			"type": "object",
			"required": ["object"],
			"properties": {"object": {"type": "object"}}
		}
	}
}`)

var documentStatusSchema = schema.MustJSON[DocumentStatus](`{
	"type": "object",
	"required": ["document_id", "status"],
	"properties": {
		"document_id": {"type": "string", "minLength": 1},
		"status": {"enum": ["draft", "ready", "sent", "viewed", "signed", "declined", "voided"]},
		"nonce": {"type": "string"}
	}
}`)

// GitHubSchemas validates the GitHub events the service handles.
func GitHubSchemas() schema.Set {
	return schema.Set{"push": githubPushSchema, "ping": githubPingSchema}
}

func ShopifySchemas() schema.Set {
	return schema.Set{"orders/create": shopifyOrderSchema, "orders/paid": shopifyOrderSchema}
}

func StripeSchemas() schema.Set {
	return schema.Set{
		"payment_intent.succeeded":      stripeEventSchema,
		"payment_intent.payment_failed": stripeEventSchema,
		"invoice.paid":                  stripeEventSchema,
	}
}

func DocumentSchemas() schema.Set {
	return schema.Set{"document_status_updated": documentStatusSchema}
}
