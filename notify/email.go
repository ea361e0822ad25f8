package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers alert emails through the SendGrid API.
type SendGridSender struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
	baseURL  string
}

// NewSendGridSender creates a sender. fromAddr must be a verified
// SendGrid sender identity.
func NewSendGridSender(apiKey, fromName, fromAddr, baseURL string) *SendGridSender {
	return &SendGridSender{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		fromAddr: fromAddr,
		baseURL:  baseURL,
	}
}

// SendPriceAlert sends the Spanish-language alert email.
func (s *SendGridSender) SendPriceAlert(ctx context.Context, n Notification) error {
	from := mail.NewEmail(s.fromName, s.fromAddr)
	to := mail.NewEmail(n.UserName, n.Email)
	subject := fmt.Sprintf("💊 %s bajó a %s", n.MedicationName, FormatCLP(n.CurrentPrice))

	link := s.baseURL + "/medications/" + n.MedicationID
	plain := fmt.Sprintf(
		"%s está a %s en %s (tu alerta: %s o menos). Ver precios: %s",
		n.MedicationName, FormatCLP(n.CurrentPrice), n.PharmacyName,
		FormatCLP(n.TargetPrice), link)

	msg := mail.NewSingleEmail(from, subject, to, plain, s.renderHTML(n, link))
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("notify: sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *SendGridSender) renderHTML(n Notification, link string) string {
	name := html.EscapeString(n.MedicationName)
	pharmacy := html.EscapeString(n.PharmacyName)
	greeting := "Hola"
	if n.UserName != "" {
		greeting = "Hola " + html.EscapeString(n.UserName)
	}
	return fmt.Sprintf(`
<div style="font-family:sans-serif;max-width:520px;margin:0 auto">
  <h2 style="color:#0f766e">💊 ¡Bajó el precio!</h2>
  <p>%s,</p>
  <p><strong>%s</strong> alcanzó el precio que esperabas:</p>
  <table style="width:100%%;border-collapse:collapse;margin:16px 0">
    <tr>
      <td style="padding:8px;border:1px solid #e5e7eb">Precio actual</td>
      <td style="padding:8px;border:1px solid #e5e7eb"><strong style="color:#0f766e">%s</strong></td>
    </tr>
    <tr>
      <td style="padding:8px;border:1px solid #e5e7eb">Tu alerta</td>
      <td style="padding:8px;border:1px solid #e5e7eb">%s o menos</td>
    </tr>
    <tr>
      <td style="padding:8px;border:1px solid #e5e7eb">Farmacia</td>
      <td style="padding:8px;border:1px solid #e5e7eb">%s</td>
    </tr>
  </table>
  <p><a href="%s" style="background:#0f766e;color:#fff;padding:10px 20px;border-radius:6px;text-decoration:none">Ver precios</a></p>
  <p style="color:#6b7280;font-size:12px">Recibes este correo porque creaste una alerta de precio. Los precios pueden variar en tienda.</p>
</div>`,
		greeting, name, FormatCLP(n.CurrentPrice), FormatCLP(n.TargetPrice), pharmacy, link)
}
