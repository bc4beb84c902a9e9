package app

import (
	"strings"
	"testing"
	"time"

	"github.com/samouzou/verza/app/models"
)

func TestInvoiceNumber(t *testing.T) {
	now := time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		brand string
		id    string
		want  string
	}{
		{"simple", "Acme Corp", "c1d2e3f4", "INV-ACM-202506-C1D2"},
		{"short brand", "Go", "abcd1234", "INV-GO-202506-ABCD"},
		{"non letters stripped", "3M & Co", "deadbeef", "INV-MCO-202506-DEAD"},
		{"empty brand", "", "feedface", "INV-AAA-202506-FEED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := models.Contract{ID: tc.id, Brand: tc.brand}
			got := InvoiceNumber(c, now)
			if got != tc.want {
				t.Fatalf("InvoiceNumber = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderInvoiceHTMLDeterministic(t *testing.T) {
	c := models.Contract{
		ID:          "c1d2e3f4",
		Brand:       "Acme",
		Amount:      1500,
		DueDate:     "2025-07-01",
		ClientName:  "Acme Marketing",
		ProjectName: "Summer campaign",
		ExtractedTerms: &models.ExtractedTerms{
			Deliverables: []string{"2 videos", "1 story"},
		},
	}

	first, err := RenderInvoiceHTML(c, "INV-ACM-202506-C1D2", "Jane Creator", "https://pay.example/x")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := RenderInvoiceHTML(c, "INV-ACM-202506-C1D2", "Jane Creator", "https://pay.example/x")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if first != second {
		t.Fatal("rendering the same contract twice produced different documents")
	}

	for _, want := range []string{"INV-ACM-202506-C1D2", "Acme Marketing", "Summer campaign", "2 videos", "1 story", "$1500.00", "2025-07-01", "https://pay.example/x"} {
		if !strings.Contains(first, want) {
			t.Errorf("invoice missing %q", want)
		}
	}
}

func TestRenderInvoiceHTMLFallbacks(t *testing.T) {
	c := models.Contract{ID: "abcd", Brand: "Globex", Amount: 200, DueDate: "2025-08-01"}

	html, err := RenderInvoiceHTML(c, "INV-GLO-202507-ABCD", "Jane", "")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Globex") {
		t.Error("client name should fall back to brand")
	}
	if !strings.Contains(html, "Services rendered") {
		t.Error("project name should fall back to a generic line")
	}
	if strings.Contains(html, "Pay this invoice online") {
		t.Error("pay link rendered without a pay URL")
	}
}

func TestReminderMail(t *testing.T) {
	c := models.Contract{ID: "c1", Brand: "Acme", Amount: 500, DueDate: "2025-06-20"}
	msg := reminderMail(c, "creator@example.com", "noreply@verza.example")

	if msg.Kind != models.MailReminder {
		t.Fatalf("kind = %q", msg.Kind)
	}
	if msg.ContractID != "c1" {
		t.Fatalf("contract id = %q", msg.ContractID)
	}
	if !strings.Contains(msg.Text, "$500.00") || !strings.Contains(msg.Text, "June 20, 2025") {
		t.Fatalf("unexpected body: %q", msg.Text)
	}
}

func TestReceiptMail(t *testing.T) {
	c := models.Contract{ID: "c9"}
	msg := receiptMail(c, "creator@example.com", "noreply@verza.example", 123456, "usd")

	if msg.Kind != models.MailReceipt {
		t.Fatalf("kind = %q", msg.Kind)
	}
	if !strings.Contains(msg.Text, "1234.56 USD") {
		t.Fatalf("unexpected body: %q", msg.Text)
	}
}
