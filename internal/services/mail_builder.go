package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/create-my-art/api/internal/domain"
	"github.com/create-my-art/api/internal/repositories"
)

const defaultAdminEmail = "kontakt@create-my-art.de"

// MailBuilder renders the German confirmation emails written into the mail
// collection. Customer-supplied strings are stripped of markup before they
// reach the HTML body; prices and size names use the display forms the shop
// shows everywhere else.
type MailBuilder struct {
	sanitizer  *bluemonday.Policy
	adminEmail string
	clock      func() time.Time
}

// NewMailBuilder constructs the builder. An empty admin address falls back to
// the shop contact address.
func NewMailBuilder(adminEmail string, clock func() time.Time) *MailBuilder {
	if strings.TrimSpace(adminEmail) == "" {
		adminEmail = defaultAdminEmail
	}
	if clock == nil {
		clock = time.Now
	}
	return &MailBuilder{
		sanitizer:  bluemonday.StrictPolicy(),
		adminEmail: adminEmail,
		clock:      clock,
	}
}

// AdminEmail returns the configured operator address.
func (b *MailBuilder) AdminEmail() string { return b.adminEmail }

// CustomerConfirmation builds the order confirmation sent to the customer.
func (b *MailBuilder) CustomerConfirmation(orderID string, order domain.Order, images []domain.UploadedImage) repositories.MailDocument {
	name := b.clean(order.Customer.Name())

	var sb strings.Builder
	sb.WriteString(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">`)
	sb.WriteString(`<h2 style="color: #333;">Vielen Dank für deine Bestellung!</h2>`)
	fmt.Fprintf(&sb, `<p>Hallo %s,</p>`, name)
	fmt.Fprintf(&sb, `<p>wir haben deine Bestellung mit der Nummer <strong>#%s</strong> erhalten und werden sie schnellstmöglich bearbeiten.</p>`, b.clean(orderID))

	sb.WriteString(`<h3 style="margin-top: 20px;">Bestellübersicht</h3>`)
	b.writeItemTable(&sb, order, false)

	sb.WriteString(`<h3 style="margin-top: 20px;">Lieferadresse</h3>`)
	fmt.Fprintf(&sb, `<p>%s<br>%s<br>%s %s</p>`,
		name,
		b.clean(order.Customer.Address()),
		b.clean(order.Customer.ZIP),
		b.clean(order.Customer.City))

	sb.WriteString(`<h3 style="margin-top: 20px;">Zahlungsmethode</h3>`)
	fmt.Fprintf(&sb, `<p>%s</p>`, b.clean(string(order.PaymentMethod)))

	b.writeImages(&sb, "Dein bestelltes Poster", order, images)

	sb.WriteString(`<p style="margin-top: 20px;">Bei Fragen zu deiner Bestellung kannst du uns jederzeit kontaktieren.</p>`)
	sb.WriteString(`<p style="margin-top: 30px;">Viele Grüße,<br>Dein CreateMyArt Team</p>`)
	sb.WriteString(`</div>`)

	return repositories.MailDocument{
		To: order.Customer.Email,
		Message: repositories.MailMessage{
			Subject: fmt.Sprintf("Bestellbestätigung #%s", orderID),
			HTML:    sb.String(),
		},
	}
}

// AdminNotification builds the richer operator notification for a new order.
func (b *MailBuilder) AdminNotification(orderID string, order domain.Order, images []domain.UploadedImage) repositories.MailDocument {
	var sb strings.Builder
	sb.WriteString(`<div style="font-family: 'Helvetica Neue', Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #ddd; border-radius: 5px;">`)
	fmt.Fprintf(&sb, `<h2 style="color: #333; margin-bottom: 15px;">Neue Bestellung #%s</h2>`, b.clean(orderID))
	sb.WriteString(`<p style="font-size: 16px; line-height: 1.5;">Eine neue Bestellung wurde aufgegeben:</p>`)

	sb.WriteString(`<div style="background-color: #f8f8f8; padding: 15px; border-radius: 5px; margin-bottom: 20px;">`)
	sb.WriteString(`<h3 style="margin-top: 0;">Kundeninformationen</h3>`)
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Name:</strong> %s</p>`, b.clean(order.Customer.Name()))
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>E-Mail:</strong> %s</p>`, b.clean(order.Customer.Email))
	if phone := strings.TrimSpace(order.Customer.Phone); phone != "" {
		fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Telefon:</strong> %s</p>`, b.clean(phone))
	}
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Straße:</strong> %s</p>`, b.clean(order.Customer.Address()))
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>PLZ:</strong> %s</p>`, b.clean(order.Customer.ZIP))
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Stadt:</strong> %s</p>`, b.clean(order.Customer.City))
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Land:</strong> %s</p>`, b.clean(order.Customer.CountryOrDefault()))
	sb.WriteString(`</div>`)

	sb.WriteString(`<div style="margin-bottom: 20px;">`)
	sb.WriteString(`<h3 style="margin-top: 0;">Bestelldetails</h3>`)
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Bestellnummer:</strong> %s</p>`, b.clean(orderID))
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Datum:</strong> %s</p>`, b.clock().Format("02.01.2006, 15:04"))
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Zahlungsmethode:</strong> %s</p>`, b.clean(string(order.PaymentMethod)))
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Status:</strong> %s</p>`, b.clean(order.Status))
	fmt.Fprintf(&sb, `<p style="margin: 5px 0;"><strong>Gesamtbetrag:</strong> %s</p>`, domain.FormatEuro(order.TotalCents))
	sb.WriteString(`</div>`)

	sb.WriteString(`<h3 style="margin-top: 0;">Bestellte Produkte</h3>`)
	b.writeItemTable(&sb, order, true)

	b.writeImages(&sb, "Bestellte Bilder", order, images)
	sb.WriteString(`</div>`)

	return repositories.MailDocument{
		To: b.adminEmail,
		Message: repositories.MailMessage{
			Subject: fmt.Sprintf("Neue Bestellung #%s", orderID),
			HTML:    sb.String(),
		},
	}
}

func (b *MailBuilder) writeItemTable(sb *strings.Builder, order domain.Order, withTotal bool) {
	sb.WriteString(`<table style="width: 100%; border-collapse: collapse; margin-bottom: 20px;">`)
	sb.WriteString(`<tr style="background-color: #f2f2f2;">` +
		`<th style="padding: 10px; text-align: left;">Produkt</th>` +
		`<th style="padding: 10px; text-align: left;">Größe</th>` +
		`<th style="padding: 10px; text-align: right;">Preis</th></tr>`)
	for _, item := range order.Items {
		price := item.PriceCents
		if price <= 0 {
			price = item.Size.PriceCents()
		}
		fmt.Fprintf(sb, `<tr><td style="padding: 10px;">%s</td><td style="padding: 10px;">%s</td><td style="padding: 10px; text-align: right;">%s</td></tr>`,
			b.clean(item.DisplayName()), item.Size.EmailLabel(), domain.FormatEuro(price))
	}
	if withTotal {
		fmt.Fprintf(sb, `<tr style="font-weight: bold;"><td style="padding: 10px;" colspan="2">Gesamtbetrag:</td><td style="padding: 10px; text-align: right;">%s</td></tr>`,
			domain.FormatEuro(order.TotalCents))
	}
	sb.WriteString(`</table>`)
}

// writeImages embeds the uploaded poster images; without uploads it falls
// back to the original cart image sources so the mail is never empty-handed.
func (b *MailBuilder) writeImages(sb *strings.Builder, heading string, order domain.Order, images []domain.UploadedImage) {
	if len(images) > 0 {
		fmt.Fprintf(sb, `<h3 style="margin-top: 20px;">%s</h3>`, heading)
		for _, img := range images {
			name := b.clean(strings.TrimSpace(img.ProductName))
			if name == "" {
				name = "KI-generiertes Poster"
			}
			fmt.Fprintf(sb, `<div style="margin-bottom: 20px; text-align: center;">`+
				`<img src="%s" alt="%s" style="max-width: 100%%; height: auto; max-height: 300px; display: block; margin: 0 auto; border: 1px solid #ddd; border-radius: 4px;">`+
				`<div style="margin-top: 10px; font-size: 14px;"><strong>%s</strong>`, img.URL, name, name)
			if img.Size != "" {
				fmt.Fprintf(sb, `<br><span style="color: #777;">Größe: %s</span>`, img.Size.EmailLabel())
			}
			sb.WriteString(`</div></div>`)
		}
		return
	}

	var fallback []string
	for _, item := range order.Items {
		if url := strings.TrimSpace(item.ImageURL); url != "" {
			fallback = append(fallback, url)
		}
	}
	if len(fallback) == 0 {
		return
	}
	fmt.Fprintf(sb, `<h3 style="margin-top: 20px;">%s</h3>`, heading)
	for _, url := range fallback {
		fmt.Fprintf(sb, `<div style="margin-bottom: 20px; text-align: center;">`+
			`<img src="%s" alt="Dein bestelltes Poster" style="max-width: 100%%; height: auto; max-height: 300px; display: block; margin: 0 auto; border: 1px solid #ddd; border-radius: 4px;"></div>`, url)
	}
}

func (b *MailBuilder) clean(value string) string {
	return b.sanitizer.Sanitize(strings.TrimSpace(value))
}
