package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// WebhookAck is the flat acknowledgement shape billing providers expect.
// Webhook routes write it directly, without the envelope above.
type WebhookAck struct {
	OK                 bool   `json:"ok"`
	UserID             string `json:"user_id,omitempty"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
	Ignored            string `json:"ignored,omitempty"`
}
