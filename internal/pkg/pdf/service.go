// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/your-org/ticketing-backend/internal/config"
	"github.com/your-org/ticketing-backend/internal/domain/event"
	"github.com/your-org/ticketing-backend/internal/domain/order"
	"github.com/your-org/ticketing-backend/internal/domain/ticket"
	"github.com/your-org/ticketing-backend/internal/pkg/ticketcode"
)

// Service handles PDF generation
type Service struct {
	config *config.Config
}

// NewService creates a new PDF service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
	}
}

// GenerateTicketSheet generates a printable PDF with one page section per
// ticket, each carrying its scannable QR code
func (s *Service) GenerateTicketSheet(o *order.Order, tickets []ticket.Ticket, events []event.Event) (*bytes.Buffer, error) {
	eventsByID := make(map[uint]event.Event, len(events))
	for _, ev := range events {
		eventsByID[ev.ID] = ev
	}

	data := ticketSheetData{
		OrderNumber:      o.OrderNumber,
		ConfirmationCode: o.ConfirmationCode,
		HolderName:       holderName(o),
		IssuedDate:       time.Now().Format("January 2, 2006"),
		AppName:          s.config.App.Name,
	}

	for _, t := range tickets {
		entry := ticketEntry{
			TicketNumber: t.TicketNumber,
			ItemType:     string(t.ItemType),
			SeatNumber:   t.SeatNumber,
			Price:        t.Price.StringFixed(2),
			Status:       string(t.Status),
		}
		if t.EventID != nil {
			if ev, ok := eventsByID[*t.EventID]; ok {
				entry.EventTitle = ev.Title
				entry.EventDate = ev.StartDate.Format("Monday, January 2, 2006 at 3:04 PM")
				if ev.Venue != nil {
					entry.Venue = fmt.Sprintf("%s, %s", ev.Venue.Name, ev.Venue.City)
				}
			}
		}
		if t.QRCode != "" {
			png, err := ticketcode.QRPNG(t.QRCode, s.config.Ticket.QRSize)
			if err != nil {
				return nil, fmt.Errorf("failed to render QR for ticket %s: %w", t.TicketNumber, err)
			}
			entry.QRDataURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
		}
		data.Tickets = append(data.Tickets, entry)
	}

	htmlContent, err := s.generateHTML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to generate HTML: %w", err)
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.Grayscale.Set(false)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader([]byte(htmlContent)))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	page.Zoom.Set(0.95)

	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}

	return bytes.NewBuffer(pdfg.Bytes()), nil
}

// generateHTML generates HTML content from the ticket sheet template
func (s *Service) generateHTML(data ticketSheetData) (string, error) {
	tmpl := template.Must(template.New("tickets").Parse(ticketSheetTemplate))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func holderName(o *order.Order) string {
	if o.GuestName != "" {
		return o.GuestName
	}
	return "Ticket Holder"
}

// ticketSheetData represents the data passed to the ticket sheet template
type ticketSheetData struct {
	OrderNumber      string
	ConfirmationCode string
	HolderName       string
	IssuedDate       string
	AppName          string
	Tickets          []ticketEntry
}

type ticketEntry struct {
	TicketNumber string
	ItemType     string
	EventTitle   string
	EventDate    string
	Venue        string
	SeatNumber   string
	Price        string
	Status       string
	QRDataURI    string
}

// Ticket sheet HTML template
const ticketSheetTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Tickets {{.OrderNumber}}</title>
    <style>
        body {
            font-family: Arial, sans-serif;
            margin: 0;
            padding: 20px;
            color: #333;
        }
        .header {
            display: flex;
            justify-content: space-between;
            margin-bottom: 30px;
            border-bottom: 2px solid #eee;
            padding-bottom: 20px;
        }
        .sheet-title {
            font-size: 28px;
            font-weight: bold;
            color: #2563eb;
            margin-bottom: 10px;
        }
        .order-info {
            text-align: right;
            flex: 1;
        }
        .ticket-card {
            border: 1px solid #ddd;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 25px;
            page-break-inside: avoid;
            display: flex;
            justify-content: space-between;
        }
        .ticket-details {
            flex: 1;
        }
        .ticket-details table td {
            padding: 4px 12px 4px 0;
            vertical-align: top;
        }
        .ticket-details .label {
            font-weight: bold;
            width: 120px;
            color: #374151;
        }
        .event-title {
            font-size: 18px;
            font-weight: bold;
            margin-bottom: 10px;
        }
        .ticket-number {
            font-family: monospace;
            font-size: 14px;
        }
        .qr-box {
            width: 180px;
            text-align: center;
        }
        .qr-box img {
            width: 160px;
            height: 160px;
        }
        .qr-box .hint {
            font-size: 10px;
            color: #666;
        }
        .status-badge {
            display: inline-block;
            padding: 4px 8px;
            border-radius: 4px;
            font-size: 12px;
            font-weight: bold;
            text-transform: uppercase;
            background-color: #dcfce7;
            color: #166534;
        }
        .footer {
            margin-top: 40px;
            padding-top: 20px;
            border-top: 1px solid #eee;
            text-align: center;
            color: #666;
            font-size: 12px;
        }
    </style>
</head>
<body>
    <div class="header">
        <div>
            <div class="sheet-title">{{.AppName}}</div>
            <p><strong>{{.HolderName}}</strong></p>
            <p>Issued: {{.IssuedDate}}</p>
        </div>
        <div class="order-info">
            <p><strong>Order #:</strong> {{.OrderNumber}}</p>
            {{if .ConfirmationCode}}<p><strong>Confirmation:</strong> {{.ConfirmationCode}}</p>{{end}}
        </div>
    </div>

    {{range .Tickets}}
    <div class="ticket-card">
        <div class="ticket-details">
            {{if .EventTitle}}<div class="event-title">{{.EventTitle}}</div>{{end}}
            <table>
                <tr>
                    <td class="label">Ticket #:</td>
                    <td class="ticket-number">{{.TicketNumber}}</td>
                </tr>
                {{if .EventDate}}
                <tr>
                    <td class="label">Date:</td>
                    <td>{{.EventDate}}</td>
                </tr>
                {{end}}
                {{if .Venue}}
                <tr>
                    <td class="label">Venue:</td>
                    <td>{{.Venue}}</td>
                </tr>
                {{end}}
                {{if .SeatNumber}}
                <tr>
                    <td class="label">Seat:</td>
                    <td>{{.SeatNumber}}</td>
                </tr>
                {{end}}
                <tr>
                    <td class="label">Type:</td>
                    <td>{{.ItemType}}</td>
                </tr>
                <tr>
                    <td class="label">Price:</td>
                    <td>KES {{.Price}}</td>
                </tr>
                <tr>
                    <td class="label">Status:</td>
                    <td><span class="status-badge">{{.Status}}</span></td>
                </tr>
            </table>
        </div>
        {{if .QRDataURI}}
        <div class="qr-box">
            <img src="{{.QRDataURI}}" alt="QR code">
            <div class="hint">Present this code at entry</div>
        </div>
        {{end}}
    </div>
    {{end}}

    <div class="footer">
        <p>Tickets are non-transferable unless stated otherwise by the organizer.</p>
        <p>Keep your confirmation code private. Anyone holding it can access this order.</p>
    </div>
</body>
</html>
`
