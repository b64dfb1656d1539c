package types

// ErrorEnvelope is the body of every non-2xx API response.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// CheckoutURL is returned by checkout initiation; the caller navigates to it.
type CheckoutURL struct {
	URL string `json:"url"`
}

// WebhookAck acknowledges a webhook delivery.
type WebhookAck struct {
	Received bool `json:"received"`
}
