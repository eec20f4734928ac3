package core

import "net/mail"

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // text/plain content
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages asynchronously; delivery failures are
		// logged, never returned. Callers that need delivery confirmation use
		// SendMessage.
		SendMessages(messages ...*EmailMessage)

		// SendMessage sends one message synchronously and reports failure.
		SendMessage(msg *EmailMessage) error
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.BodyStr != "" }

func (m *EmailMessage) joinAddresses(addrs []mail.Address) []string {
	joined := make([]string, 0, len(addrs))
	for _, a := range addrs {
		joined = append(joined, a.String())
	}
	return joined
}

// Recipients returns all To addresses in RFC 5322 format.
func (m *EmailMessage) Recipients() []string { return m.joinAddresses(m.To) }
