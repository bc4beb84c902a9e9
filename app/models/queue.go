package models

// MailKind distinguishes the templates a queued message was built from.
type MailKind string

const (
	MailReminder MailKind = "reminder"
	MailInvoice  MailKind = "invoice"
	MailReceipt  MailKind = "receipt"
)

// MailMessage is the unit of work pushed onto the mail queue by the sweeper
// and consumed by cmd/mailworker. ContractID and IdempotencyKey travel with
// the message for logging and duplicate tracing only; the dedupe decision is
// made before enqueue.
type MailMessage struct {
	Kind           MailKind `json:"kind"`
	To             string   `json:"to"`
	From           string   `json:"from"`
	Subject        string   `json:"subject"`
	Text           string   `json:"text"`
	HTML           string   `json:"html"`
	ContractID     string   `json:"contract_id,omitempty"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}
