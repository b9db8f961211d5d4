package utils

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"velora_back_end/internal/models"

	"github.com/skip2/go-qrcode"
	"github.com/wneessen/go-mail"
)

func SendConfirmationEmail(to, subject, htmlBody string) error {
	msg := mail.NewMsg()

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "noreply@velora.shop"
	}
	if err := msg.From(from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(os.Getenv("SMTP_HOST"),
		mail.WithPort(587),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(os.Getenv("SMTP_USERNAME")),
		mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail à", to)
	return client.DialAndSend(msg)
}

// GenerateOrderConfirmationHTML génère le HTML de confirmation de commande
func GenerateOrderConfirmationHTML(order models.Order) string {
	itemsHTML := ""
	for _, item := range order.Items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td>%s</td>
				<td>%d</td>
				<td>%.2f€</td>
				<td>%.2f€</td>
			</tr>`, item.Name, item.Quantity, item.Price, item.Price*float64(item.Quantity))
	}

	discountHTML := ""
	if order.Discount > 0 {
		code := ""
		if order.Promotion != nil && order.Promotion.Code != "" {
			code = " (" + order.Promotion.Code + ")"
		}
		discountHTML = fmt.Sprintf(`
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right;">Remise%s:</td>
					<td style="padding: 10px;">-%.2f€</td>
				</tr>`, code, order.Discount)
	}

	qrHTML := ""
	if qr := orderQRCode(order.ID); qr != "" {
		qrHTML = fmt.Sprintf(`
		<p style="text-align: center; margin-top: 20px;">
			<img src="data:image/png;base64,%s" alt="Référence commande" width="160" height="160"/><br>
			<span style="color: #888; font-size: 12px;">Présentez ce code pour tout retrait ou retour</span>
		</p>`, qr)
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Confirmation de commande</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Confirmation de votre commande</h2>
		<p>Bonjour,</p>
		<p>Votre commande <strong>%s</strong> a été confirmée avec succès.</p>

		<h3>Détails de la commande</h3>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Produit</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Prix unitaire</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
			<tfoot>
				%s
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right;">Livraison:</td>
					<td style="padding: 10px;">%.2f€</td>
				</tr>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right;">Taxes:</td>
					<td style="padding: 10px;">%.2f€</td>
				</tr>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total:</td>
					<td style="padding: 10px; font-weight: bold;">%.2f€</td>
				</tr>
			</tfoot>
		</table>
		%s
		<p style="margin-top: 30px; color: #555;">
			Cordialement,<br>
			<strong>L'équipe Velora</strong>
		</p>
	</div>
</body>
</html>`, order.ID, itemsHTML, discountHTML, order.ShippingCost, order.Tax, order.Total, qrHTML)
}

// orderQRCode encode la référence de commande en QR PNG base64, vide si échec
func orderQRCode(orderID string) string {
	png, err := qrcode.Encode(orderID, qrcode.Medium, 160)
	if err != nil {
		log.Println("⚠️ Génération QR impossible:", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(png)
}
