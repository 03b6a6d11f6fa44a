// Package handlers holds the schemas and handlers wired for the bundled
// providers by the serve command.
package handlers

// GitHubPush is the subset of a GitHub push event the service reads.
type GitHubPush struct {
	Ref        string `json:"ref"`
	Before     string `json:"before"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
	Commits []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"commits"`
}

type GitHubPing struct {
	Zen    string  `json:"zen"`
	HookID float64 `json:"hook_id"`
}

type ShopifyOrder struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Currency   string `json:"currency"`
	TotalPrice string `json:"total_price"`
	LineItems  []struct {
		SKU      string `json:"sku"`
		Quantity int    `json:"quantity"`
	} `json:"line_items"`
}

// StripeEvent is the Stripe event object; Data.Object varies by type.
type StripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object map[string]any `json:"object"`
	} `json:"data"`
}

// DocumentStatus is the unwrapped payload of a document envelope with the
// envelope nonce merged in.
type DocumentStatus struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Nonce      string `json:"nonce"`
}
