package notify

import "time"

// WebhookPayload is the document generic webhooks receive.
type WebhookPayload struct {
	Type      string            `json:"type"`
	Repo      string            `json:"repo"`
	Branch    string            `json:"branch,omitempty"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewWebhookNotifier posts a WebhookPayload to url with the extra headers.
func NewWebhookNotifier(url string, headers map[string]string) *HookNotifier {
	return NewHookNotifier("webhook", url, headers, renderWebhook)
}

func renderWebhook(event Event) any {
	return WebhookPayload{
		Type:      string(event.Type),
		Repo:      event.Repo,
		Branch:    event.Branch,
		Message:   FormatMessage(event),
		Timestamp: event.Timestamp.Format(time.RFC3339),
		Details:   event.Details,
	}
}
