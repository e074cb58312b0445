package model

// RecipientKind discriminates the delivery channel of a Recipient.
type RecipientKind string

// Recipient channel values.
const (
	RecipientEmail RecipientKind = "email"
	RecipientPhone RecipientKind = "sms"
)

// Recipient is a tagged variant identifying where a notification is
// delivered: an email address or a phone number. The Kind field is
// the discriminant; Address holds the value for either channel.
type Recipient struct {
	Kind    RecipientKind `json:"kind"`
	Address string        `json:"address"`
}

// EmailRecipient returns a Recipient addressing an email inbox.
func EmailRecipient(addr string) Recipient {
	return Recipient{Kind: RecipientEmail, Address: addr}
}

// PhoneRecipient returns a Recipient addressing a phone number.
func PhoneRecipient(number string) Recipient {
	return Recipient{Kind: RecipientPhone, Address: number}
}

// Notification categories attached to ticket events.
const (
	CategoryConfirmation = "Confirmation"
	CategoryCancellation = "Cancellation"
)
