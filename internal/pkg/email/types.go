// internal/pkg/email/types.go
package email

// Email represents an outbound message
type Email struct {
	To          []string
	Subject     string
	HTMLContent string
	Attachments []Attachment
}

// Attachment represents a file attached to an email
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}
