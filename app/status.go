package app

import "github.com/samouzou/verza/app/models"

// ConsistentStatuses reports whether a contract status and invoice status
// may coexist. The two fields are stored independently, so writes go through
// this guard instead of trusting callers:
//
//   - a paid contract cannot carry an open invoice (draft/sent/viewed) or an
//     overdue one;
//   - a paid invoice is only valid on a paid contract;
//   - an invoiced contract must actually have an invoice.
func ConsistentStatuses(status models.ContractStatus, invoice models.InvoiceStatus) bool {
	switch status {
	case models.StatusPaid:
		return invoice == models.InvoiceNone || invoice == models.InvoicePaid
	case models.StatusInvoiced:
		return invoice != models.InvoiceNone && invoice != models.InvoicePaid
	case models.StatusPending, models.StatusOverdue, models.StatusAtRisk:
		return invoice != models.InvoicePaid
	default:
		return false
	}
}

// validateStatusChange guards a contract status write, returning a tagged
// validation error when the requested combination is inconsistent.
func validateStatusChange(status models.ContractStatus, invoice models.InvoiceStatus) error {
	switch status {
	case models.StatusPending, models.StatusPaid, models.StatusOverdue, models.StatusAtRisk, models.StatusInvoiced:
	default:
		return validationErrorf("unknown contract status %q", status)
	}
	if !ConsistentStatuses(status, invoice) {
		return validationErrorf("status %q is inconsistent with invoice status %q", status, invoice)
	}
	return nil
}
