// Package mail delivers bill reports over SMTP.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// DefaultMaxAttachmentBytes caps the combined attachment size per message.
// Most providers reject messages around this size anyway.
const DefaultMaxAttachmentBytes = 25 << 20

// DeliveryErrorKind classifies delivery failures.
type DeliveryErrorKind int

const (
	// Unreachable covers connection and dial failures.
	Unreachable DeliveryErrorKind = iota
	// Rejected means the server refused the message or recipient.
	Rejected
	// TooLarge means the attachment set exceeds the configured cap.
	TooLarge
)

func (k DeliveryErrorKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Rejected:
		return "rejected"
	case TooLarge:
		return "too large"
	}
	return "unknown"
}

// DeliveryError is the typed failure returned by a Mailer. Delivery is
// never retried by the caller; the failure is surfaced once.
type DeliveryError struct {
	Kind DeliveryErrorKind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("mail delivery: %s: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// DeliveryKindOf extracts the kind from err; false when err is not a
// DeliveryError.
func DeliveryKindOf(err error) (DeliveryErrorKind, bool) {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// Attachment is a named file to include in a report message.
type Attachment struct {
	Filename string
	Content  []byte
}

// Mailer sends report messages with attachments.
type Mailer interface {
	// SendReport delivers one message. Failures come back as *DeliveryError.
	SendReport(ctx context.Context, to, subject, body string, attachments []Attachment) error
	// Ping verifies the SMTP server is reachable
	Ping(ctx context.Context) error
}

// Disabled is the Mailer used when SMTP is not configured. Every send
// fails as unreachable with a hint toward the missing configuration.
type Disabled struct{}

func (Disabled) SendReport(ctx context.Context, to, subject, body string, attachments []Attachment) error {
	return &DeliveryError{Kind: Unreachable, Err: errors.New("email delivery is not configured")}
}

func (Disabled) Ping(ctx context.Context) error {
	return errors.New("email delivery is not configured")
}

// SMTPMailer implements Mailer on an authenticated STARTTLS SMTP session.
type SMTPMailer struct {
	client   *gomail.Client
	from     string
	maxBytes int64
}

// NewSMTPMailer creates an SMTPMailer. The client is constructed once at
// startup and shared; go-mail serializes sends internally.
func NewSMTPMailer(host string, port int, username, password, from string) (*SMTPMailer, error) {
	if host == "" || from == "" {
		return nil, fmt.Errorf("smtp host and from address are required")
	}

	client, err := gomail.NewClient(host,
		gomail.WithPort(port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(username),
		gomail.WithPassword(password),
		gomail.WithTLSPortPolicy(gomail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	return &SMTPMailer{
		client:   client,
		from:     from,
		maxBytes: DefaultMaxAttachmentBytes,
	}, nil
}

// SendReport delivers one report message with its attachments
func (m *SMTPMailer) SendReport(ctx context.Context, to, subject, body string, attachments []Attachment) error {
	var total int64
	for _, att := range attachments {
		total += int64(len(att.Content))
	}
	if total > m.maxBytes {
		return &DeliveryError{
			Kind: TooLarge,
			Err:  fmt.Errorf("attachments total %d bytes, cap is %d", total, m.maxBytes),
		}
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return &DeliveryError{Kind: Rejected, Err: fmt.Errorf("from address: %w", err)}
	}
	if err := msg.To(to); err != nil {
		return &DeliveryError{Kind: Rejected, Err: fmt.Errorf("recipient address: %w", err)}
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	for _, att := range attachments {
		if err := msg.AttachReader(att.Filename, bytes.NewReader(att.Content)); err != nil {
			return &DeliveryError{Kind: Rejected, Err: fmt.Errorf("attaching %s: %w", att.Filename, err)}
		}
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		var sendErr *gomail.SendError
		if errors.As(err, &sendErr) {
			return &DeliveryError{Kind: Rejected, Err: err}
		}
		return &DeliveryError{Kind: Unreachable, Err: err}
	}
	return nil
}

// Ping dials the SMTP server and disconnects
func (m *SMTPMailer) Ping(ctx context.Context) error {
	if err := m.client.DialWithContext(ctx); err != nil {
		return &DeliveryError{Kind: Unreachable, Err: err}
	}
	return m.client.Close()
}
