// Package models defines the contract, user, and dashboard records shared
// across the API, the sweeper, and the mail worker.
package models

import "time"

// ContractStatus is the top-level payment state of a contract. Transitions
// are driven externally: manual edits, the Stripe webhook (paid), and the
// daily sweep (overdue).
type ContractStatus string

const (
	StatusPending  ContractStatus = "pending"
	StatusPaid     ContractStatus = "paid"
	StatusOverdue  ContractStatus = "overdue"
	StatusAtRisk   ContractStatus = "at_risk"
	StatusInvoiced ContractStatus = "invoiced"
)

// InvoiceStatus tracks the invoice document lifecycle independently of the
// contract status.
type InvoiceStatus string

const (
	InvoiceNone    InvoiceStatus = "none"
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoiceViewed  InvoiceStatus = "viewed"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

type ContractType string

const (
	TypeSponsorship ContractType = "sponsorship"
	TypeConsulting  ContractType = "consulting"
	TypeAffiliate   ContractType = "affiliate"
	TypeRetainer    ContractType = "retainer"
	TypeOther       ContractType = "other"
)

// ExtractedTerms holds the free-form clauses pulled out of the contract text
// by the extractor.
type ExtractedTerms struct {
	PaymentMethod      string   `json:"paymentMethod,omitempty"`
	UsageRights        string   `json:"usageRights,omitempty"`
	TerminationClauses string   `json:"terminationClauses,omitempty"`
	Deliverables       []string `json:"deliverables,omitempty"`
	LateFeePenalty     string   `json:"lateFeePenalty,omitempty"`
}

// InvoiceHistoryEntry is one line of the append-only invoice action log.
type InvoiceHistoryEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Contract is owned by exactly one user and is never physically deleted.
// DueDate is a calendar date (YYYY-MM-DD), no time component.
type Contract struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"userId"`
	Brand       string         `db:"brand" json:"brand"`
	Amount      float64        `db:"amount" json:"amount"`
	DueDate     string         `db:"due_date" json:"dueDate"`
	Status      ContractStatus `db:"status" json:"status"`
	Type        ContractType   `db:"contract_type" json:"contractType"`
	ProjectName string         `db:"project_name" json:"projectName,omitempty"`
	ClientName  string         `db:"client_name" json:"clientName,omitempty"`
	ClientEmail string         `db:"client_email" json:"clientEmail,omitempty"`

	ExtractedTerms *ExtractedTerms `db:"extracted_terms" json:"extractedTerms,omitempty"`
	Summary        string          `db:"summary" json:"summary,omitempty"`
	ContractText   string          `db:"contract_text" json:"contractText,omitempty"`
	FileName       string          `db:"file_name" json:"fileName,omitempty"`
	FileURL        string          `db:"file_url" json:"fileUrl,omitempty"`

	InvoiceStatus  InvoiceStatus         `db:"invoice_status" json:"invoiceStatus"`
	InvoiceNumber  string                `db:"invoice_number" json:"invoiceNumber,omitempty"`
	InvoiceHTML    string                `db:"invoice_html" json:"invoiceHtmlContent,omitempty"`
	LastReminderAt *time.Time            `db:"last_reminder_at" json:"lastReminderAt,omitempty"`
	InvoiceHistory []InvoiceHistoryEntry `db:"-" json:"invoiceHistory,omitempty"`

	// PaidAt records when the payment actually landed (webhook time), as
	// opposed to DueDate which is only a proxy.
	PaidAt *time.Time `db:"paid_at" json:"paidAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// DueDateLayout is the calendar-date wire format for contract due dates.
const DueDateLayout = "2006-01-02"

// DueDay parses the contract's due date at midnight UTC. A zero time is
// returned for malformed dates.
func (c Contract) DueDay() time.Time {
	t, err := time.Parse(DueDateLayout, c.DueDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// PaymentRecord logs a settled gateway payment against a contract.
type PaymentRecord struct {
	ID              string    `db:"id" json:"id"`
	PaymentIntentID string    `db:"payment_intent_id" json:"paymentIntentId"`
	ContractID      string    `db:"contract_id" json:"contractId"`
	UserID          string    `db:"user_id" json:"userId"`
	Amount          int64     `db:"amount" json:"amount"` // smallest currency unit
	Currency        string    `db:"currency" json:"currency"`
	CustomerID      string    `db:"customer_id" json:"customerId,omitempty"`
	CustomerEmail   string    `db:"customer_email" json:"customerEmail,omitempty"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}
