package app

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/samouzou/verza/app/models"
)

// InvoiceNumber builds the display number for a contract's invoice:
// INV-<first three brand letters>-<YYYYMM>-<first four id chars>.
func InvoiceNumber(c models.Contract, now time.Time) string {
	brand := strings.ToUpper(strings.Map(keepLetters, c.Brand))
	if len(brand) >= 3 {
		brand = brand[:3]
	} else if brand == "" {
		brand = "AAA"
	}
	id := strings.ToUpper(c.ID)
	if len(id) > 4 {
		id = id[:4]
	}
	return fmt.Sprintf("INV-%s-%s-%s", brand, now.Format("200601"), id)
}

func keepLetters(r rune) rune {
	if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return r
	}
	return -1
}

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.Number}}</title></head>
<body style="font-family: Arial, sans-serif; color: #1a1a2e;">
  <h1>Invoice {{.Number}}</h1>
  <p><strong>From:</strong> {{.IssuerName}}</p>
  <p><strong>To:</strong> {{.ClientName}}</p>
  <p><strong>Project:</strong> {{.ProjectName}}</p>
  <table style="width:100%; border-collapse: collapse;">
    <tr><th style="text-align:left; border-bottom:1px solid #ccc;">Description</th></tr>
    {{range .Deliverables}}<tr><td style="border-bottom:1px solid #eee;">{{.}}</td></tr>
    {{end}}
  </table>
  <h2>Total Due: ${{printf "%.2f" .Amount}}</h2>
  <p><strong>Due Date:</strong> {{.DueDate}}</p>
  {{if .PayURL}}<p><a href="{{.PayURL}}">Pay this invoice online</a></p>{{end}}
  <p>Thank you for your business!</p>
</body>
</html>
`))

type invoiceData struct {
	Number       string
	IssuerName   string
	ClientName   string
	ProjectName  string
	Deliverables []string
	Amount       float64
	DueDate      string
	PayURL       string
}

// RenderInvoiceHTML produces the invoice document for a contract. Rendering
// is deterministic so regenerating an unchanged contract yields an identical
// document.
func RenderInvoiceHTML(c models.Contract, number, issuerName, payURL string) (string, error) {
	data := invoiceData{
		Number:      number,
		IssuerName:  issuerName,
		ClientName:  c.ClientName,
		ProjectName: c.ProjectName,
		Amount:      c.Amount,
		DueDate:     c.DueDate,
		PayURL:      payURL,
	}
	if data.ClientName == "" {
		data.ClientName = c.Brand
	}
	if data.ProjectName == "" {
		data.ProjectName = "Services rendered"
	}
	if c.ExtractedTerms != nil {
		data.Deliverables = c.ExtractedTerms.Deliverables
	}
	if len(data.Deliverables) == 0 {
		data.Deliverables = []string{data.ProjectName}
	}

	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// reminderMail builds the payment reminder sent by the sweep.
func reminderMail(c models.Contract, to, from string) models.MailMessage {
	due := c.DueDay().Format("January 2, 2006")
	return models.MailMessage{
		Kind:       models.MailReminder,
		To:         to,
		From:       from,
		Subject:    "Payment Reminder",
		ContractID: c.ID,
		Text: fmt.Sprintf(
			"This is a reminder that your payment of $%.2f from %s is due on %s.",
			c.Amount, c.Brand, due),
		HTML: fmt.Sprintf(
			"<h2>Payment Reminder</h2>"+
				"<p>This is a reminder that your payment of $%.2f from %s is due on %s.</p>"+
				"<p>Please ensure your payment is made on time to avoid any late fees.</p>"+
				"<p>Thank you,<br>The Verza Team</p>",
			c.Amount, template.HTMLEscapeString(c.Brand), due),
	}
}

// receiptMail builds the payment confirmation sent after a settled payment.
func receiptMail(c models.Contract, to, from string, amountCents int64, currency string) models.MailMessage {
	amount := float64(amountCents) / 100
	cur := strings.ToUpper(currency)
	return models.MailMessage{
		Kind:       models.MailReceipt,
		To:         to,
		From:       from,
		Subject:    "Payment Confirmation",
		ContractID: c.ID,
		Text: fmt.Sprintf(
			"Your payment of %.2f %s for contract %s has been received.",
			amount, cur, c.ID),
		HTML: fmt.Sprintf(
			"<h2>Payment Confirmation</h2>"+
				"<p>Your payment of %.2f %s for contract %s has been received.</p>"+
				"<p>Thank you for your business!</p>"+
				"<p>The Verza Team</p>",
			amount, cur, c.ID),
	}
}

// invoiceMail wraps a generated invoice document for delivery.
func invoiceMail(c models.Contract, issuerName, to, from, payURL string) models.MailMessage {
	number := c.InvoiceNumber
	subject := fmt.Sprintf("Invoice %s from %s", number, issuerName)
	text := fmt.Sprintf(
		"Hello %s,\n\nPlease find your invoice %s for %s.\n\nTotal Amount Due: $%.2f\nDue Date: %s\n",
		firstNonEmpty(c.ClientName, c.Brand), number, firstNonEmpty(c.ProjectName, "services rendered"),
		c.Amount, c.DueDay().Format("January 2, 2006"))
	if payURL != "" {
		text += fmt.Sprintf("\nClick here to pay: %s\n", payURL)
	}
	text += fmt.Sprintf("\nThank you,\n%s", issuerName)

	return models.MailMessage{
		Kind:       models.MailInvoice,
		To:         to,
		From:       from,
		Subject:    subject,
		ContractID: c.ID,
		Text:       text,
		HTML:       c.InvoiceHTML,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
