// internal/pkg/email/service.go
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/order"
	"github.com/your-org/ticketing-backend/internal/domain/ticket"
	"github.com/your-org/ticketing-backend/internal/domain/user"
	"github.com/your-org/ticketing-backend/internal/pkg/ics"
	"github.com/your-org/ticketing-backend/internal/pkg/pdf"
	"github.com/your-org/ticketing-backend/internal/pkg/ticketcode"
)

// EmailService sends transactional mail over SMTP
type EmailService struct {
	config *config.Config
	db     *gorm.DB
	logger *logrus.Logger
	pdf    *pdf.Service
}

// NewEmailService creates a new email service. The PDF service is optional;
// when nil the ticket sheet attachment is skipped.
func NewEmailService(cfg *config.Config, db *gorm.DB, logger *logrus.Logger, pdfService *pdf.Service) *EmailService {
	return &EmailService{
		config: cfg,
		db:     db,
		logger: logger,
		pdf:    pdfService,
	}
}

// SendOrderConfirmation sends the order confirmation with QR tickets, a
// calendar invite per event, and a printable ticket sheet
func (s *EmailService) SendOrderConfirmation(o *order.Order, tickets []ticket.Ticket, events []event.Event) error {
	if !s.config.Email.Enabled {
		s.logger.WithField("order_id", o.ID).Debug("Email disabled, skipping order confirmation")
		return nil
	}

	recipient, err := s.recipient(o)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}

	htmlContent, err := s.renderOrderConfirmation(o, tickets, events)
	if err != nil {
		return fmt.Errorf("failed to render confirmation email: %w", err)
	}

	msg := &Email{
		To:          []string{recipient},
		Subject:     fmt.Sprintf("Your tickets for order %s", o.OrderNumber),
		HTMLContent: htmlContent,
	}

	for _, t := range tickets {
		if t.QRCode == "" {
			continue
		}
		png, qrErr := ticketcode.QRPNG(t.QRCode, s.config.Ticket.QRSize)
		if qrErr != nil {
			s.logger.WithError(qrErr).WithField("ticket", t.TicketNumber).Warn("Failed to render QR attachment")
			continue
		}
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename: t.TicketNumber + ".png",
			MIMEType: "image/png",
			Content:  png,
		})
	}

	if invite := s.calendarInvite(o, events); invite != "" {
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename: "events.ics",
			MIMEType: "text/calendar",
			Content:  []byte(invite),
		})
	}

	if s.pdf != nil && len(tickets) > 0 {
		sheet, pdfErr := s.pdf.GenerateTicketSheet(o, tickets, events)
		if pdfErr != nil {
			s.logger.WithError(pdfErr).WithField("order_id", o.ID).Warn("Failed to generate ticket sheet PDF")
		} else {
			msg.Attachments = append(msg.Attachments, Attachment{
				Filename: fmt.Sprintf("tickets-%s.pdf", o.OrderNumber),
				MIMEType: "application/pdf",
				Content:  sheet.Bytes(),
			})
		}
	}

	return s.sendSMTPEmail(msg)
}

// SendGuestAccessLink sends a guest a link back to their order lookup page
func (s *EmailService) SendGuestAccessLink(email, code string) error {
	if !s.config.Email.Enabled {
		s.logger.Debug("Email disabled, skipping guest access link")
		return nil
	}

	link := fmt.Sprintf("%s/guest/tickets?email=%s&code=%s",
		s.config.App.FrontendURL, url.QueryEscape(email), url.QueryEscape(code))

	var buf bytes.Buffer
	data := guestAccessData{
		AppName:          s.config.App.Name,
		AccessLink:       link,
		ConfirmationCode: code,
	}
	if err := guestAccessTmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render guest access email: %w", err)
	}

	return s.sendSMTPEmail(&Email{
		To:          []string{email},
		Subject:     "Access your tickets",
		HTMLContent: buf.String(),
	})
}

// recipient resolves the destination address for an order
func (s *EmailService) recipient(o *order.Order) (string, error) {
	if o.IsGuest {
		if o.GuestEmail == "" {
			return "", fmt.Errorf("guest order %s has no email", o.ID)
		}
		return o.GuestEmail, nil
	}
	if o.UserID == nil {
		return "", fmt.Errorf("order %s has no owner", o.ID)
	}
	var u user.User
	if err := s.db.First(&u, *o.UserID).Error; err != nil {
		return "", fmt.Errorf("failed to load user %d: %w", *o.UserID, err)
	}
	return u.Email, nil
}

// calendarInvite renders one ICS document covering every event on the order
func (s *EmailService) calendarInvite(o *order.Order, events []event.Event) string {
	if len(events) == 0 {
		return ""
	}
	invites := make([]ics.Invite, 0, len(events))
	for _, ev := range events {
		invite := ics.Invite{
			UID:     fmt.Sprintf("%s-%d@%s", o.ID, ev.ID, "ticketing"),
			Summary: ev.Title,
			Start:   ev.StartDate,
			End:     ev.EndDate,
		}
		if ev.Venue != nil {
			invite.Location = fmt.Sprintf("%s, %s", ev.Venue.Name, ev.Venue.City)
		}
		invites = append(invites, invite)
	}
	return ics.Render(invites)
}

func (s *EmailService) renderOrderConfirmation(o *order.Order, tickets []ticket.Ticket, events []event.Event) (string, error) {
	eventsByID := make(map[uint]event.Event, len(events))
	for _, ev := range events {
		eventsByID[ev.ID] = ev
	}

	data := orderConfirmationData{
		AppName:          s.config.App.Name,
		OrderNumber:      o.OrderNumber,
		HolderName:       o.GuestName,
		TotalAmount:      o.TotalAmount.StringFixed(2),
		AmountPaid:       o.AmountPaid.StringFixed(2),
		BalanceDue:       o.BalanceDue.StringFixed(2),
		HasBalance:       o.BalanceDue.IsPositive(),
		ConfirmationCode: o.ConfirmationCode,
		IsGuest:          o.IsGuest,
	}
	if data.HolderName == "" {
		data.HolderName = "there"
	}
	if o.IsGuest {
		data.AccessLink = fmt.Sprintf("%s/guest/tickets?email=%s&code=%s",
			s.config.App.FrontendURL, url.QueryEscape(o.GuestEmail), url.QueryEscape(o.ConfirmationCode))
	}

	for _, t := range tickets {
		line := ticketLine{
			TicketNumber: t.TicketNumber,
			SeatNumber:   t.SeatNumber,
			Price:        t.Price.StringFixed(2),
		}
		if t.EventID != nil {
			if ev, ok := eventsByID[*t.EventID]; ok {
				line.EventTitle = ev.Title
				line.EventDate = ev.StartDate.Format("Mon, Jan 2 2006 3:04 PM")
			}
		}
		if line.EventTitle == "" {
			line.EventTitle = string(t.ItemType)
		}
		data.Tickets = append(data.Tickets, line)
	}

	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type orderConfirmationData struct {
	AppName          string
	OrderNumber      string
	HolderName       string
	TotalAmount      string
	AmountPaid       string
	BalanceDue       string
	HasBalance       bool
	ConfirmationCode string
	IsGuest          bool
	AccessLink       string
	Tickets          []ticketLine
}

type ticketLine struct {
	TicketNumber string
	EventTitle   string
	EventDate    string
	SeatNumber   string
	Price        string
}

type guestAccessData struct {
	AppName          string
	AccessLink       string
	ConfirmationCode string
}

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2 style="color: #2563eb;">{{.AppName}}</h2>
    <p>Hi {{.HolderName}},</p>
    <p>Your order <strong>{{.OrderNumber}}</strong> is confirmed. Your tickets are attached to this email.</p>

    <table style="border-collapse: collapse; width: 100%; margin: 20px 0;">
        <tr style="background-color: #f8f9fa;">
            <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Ticket</th>
            <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Event</th>
            <th style="border: 1px solid #ddd; padding: 8px; text-align: left;">Seat</th>
            <th style="border: 1px solid #ddd; padding: 8px; text-align: right;">Price</th>
        </tr>
        {{range .Tickets}}
        <tr>
            <td style="border: 1px solid #ddd; padding: 8px; font-family: monospace;">{{.TicketNumber}}</td>
            <td style="border: 1px solid #ddd; padding: 8px;">{{.EventTitle}}{{if .EventDate}}<br><small>{{.EventDate}}</small>{{end}}</td>
            <td style="border: 1px solid #ddd; padding: 8px;">{{if .SeatNumber}}{{.SeatNumber}}{{else}}-{{end}}</td>
            <td style="border: 1px solid #ddd; padding: 8px; text-align: right;">KES {{.Price}}</td>
        </tr>
        {{end}}
    </table>

    <p><strong>Total:</strong> KES {{.TotalAmount}}<br>
    <strong>Paid:</strong> KES {{.AmountPaid}}</p>
    {{if .HasBalance}}
    <p style="color: #92400e;"><strong>Balance due:</strong> KES {{.BalanceDue}}. Your tickets activate once the balance is settled.</p>
    {{end}}

    {{if .IsGuest}}
    <p>Your confirmation code is <strong>{{.ConfirmationCode}}</strong>. Use it together with your email address to
    <a href="{{.AccessLink}}">view your tickets</a> at any time. Keep this code private.</p>
    {{end}}

    <p style="color: #666; font-size: 12px;">Present the attached QR codes at entry. Each code admits one person.</p>
</body>
</html>
`))

var guestAccessTmpl = template.Must(template.New("guest_access").Parse(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
    <h2 style="color: #2563eb;">{{.AppName}}</h2>
    <p>You asked for a link to your tickets.</p>
    <p><a href="{{.AccessLink}}">View your tickets</a></p>
    <p>Your confirmation code is <strong>{{.ConfirmationCode}}</strong>. Keep it private; anyone holding it can access your order.</p>
    <p style="color: #666; font-size: 12px;">If you did not request this email you can ignore it.</p>
</body>
</html>
`))
