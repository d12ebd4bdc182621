package enums

import "fmt"

// WebhookStatus maps to the webhook_status enum in Postgres.
type WebhookStatus string

const (
	WebhookStatusPending WebhookStatus = "pending"
	WebhookStatusSuccess WebhookStatus = "success"
	WebhookStatusFailed  WebhookStatus = "failed"
	// WebhookStatusIgnored marks events with codes the engine does not handle.
	WebhookStatusIgnored WebhookStatus = "ignored"
)

var validWebhookStatuses = []WebhookStatus{
	WebhookStatusPending,
	WebhookStatusSuccess,
	WebhookStatusFailed,
	WebhookStatusIgnored,
}

// IsValid reports whether the value matches the canonical webhook_status enum.
func (s WebhookStatus) IsValid() bool {
	for _, candidate := range validWebhookStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseWebhookStatus converts raw input into WebhookStatus.
func ParseWebhookStatus(value string) (WebhookStatus, error) {
	for _, candidate := range validWebhookStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook status %q", value)
}
