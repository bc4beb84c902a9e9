package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/samouzou/verza/app/config"
	"github.com/samouzou/verza/app/models"
)

// Store wraps the Postgres connection. It is constructed once and injected
// into the server, the sweeper, and the mail worker instead of living as a
// package global.
type Store struct {
	db  *sql.DB
	dsn string
}

func postgresDSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Username,
		cfg.Password,
		cfg.URL,
		cfg.Port,
		cfg.Name,
	)
}

// NewStore opens and pings the database.
func NewStore(cfg config.PostgresConfig) (*Store, error) {
	dsn := postgresDSN(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	log.Println("Connected to Postgres")
	return &Store{db: db, dsn: dsn}, nil
}

// Migrate applies pending schema migrations from the given directory.
func (s *Store) Migrate(dir string) error {
	driver, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

const contractColumns = `
	id, user_id, brand, amount, due_date, status, contract_type,
	project_name, client_name, client_email,
	extracted_terms, summary, contract_text, file_name, file_url,
	invoice_status, invoice_number, invoice_html, last_reminder_at,
	paid_at, created_at, updated_at`

func scanContract(row interface{ Scan(...any) error }) (models.Contract, error) {
	var (
		c              models.Contract
		dueDate        time.Time
		projectName    sql.NullString
		clientName     sql.NullString
		clientEmail    sql.NullString
		terms          []byte
		summary        sql.NullString
		contractText   sql.NullString
		fileName       sql.NullString
		fileURL        sql.NullString
		invoiceNumber  sql.NullString
		invoiceHTML    sql.NullString
		lastReminderAt sql.NullTime
		paidAt         sql.NullTime
	)

	err := row.Scan(
		&c.ID, &c.UserID, &c.Brand, &c.Amount, &dueDate, &c.Status, &c.Type,
		&projectName, &clientName, &clientEmail,
		&terms, &summary, &contractText, &fileName, &fileURL,
		&c.InvoiceStatus, &invoiceNumber, &invoiceHTML, &lastReminderAt,
		&paidAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return models.Contract{}, err
	}

	c.DueDate = dueDate.Format(models.DueDateLayout)
	c.ProjectName = projectName.String
	c.ClientName = clientName.String
	c.ClientEmail = clientEmail.String
	c.Summary = summary.String
	c.ContractText = contractText.String
	c.FileName = fileName.String
	c.FileURL = fileURL.String
	c.InvoiceNumber = invoiceNumber.String
	c.InvoiceHTML = invoiceHTML.String
	if lastReminderAt.Valid {
		t := lastReminderAt.Time
		c.LastReminderAt = &t
	}
	if paidAt.Valid {
		t := paidAt.Time
		c.PaidAt = &t
	}
	if len(terms) > 0 {
		var et models.ExtractedTerms
		if err := json.Unmarshal(terms, &et); err == nil {
			c.ExtractedTerms = &et
		}
	}
	return c, nil
}

// CreateContract inserts a new contract owned by userID and returns it with
// server-assigned id and timestamps.
func (s *Store) CreateContract(ctx context.Context, c models.Contract) (models.Contract, error) {
	if c.UserID == "" {
		return models.Contract{}, validationErrorf("missing user id")
	}
	if c.Brand == "" {
		return models.Contract{}, validationErrorf("missing brand")
	}
	if c.Amount < 0 {
		return models.Contract{}, validationErrorf("amount must be non-negative")
	}
	if _, err := time.Parse(models.DueDateLayout, c.DueDate); err != nil {
		return models.Contract{}, validationErrorf("dueDate %q is not a YYYY-MM-DD date", c.DueDate)
	}
	if c.Status == "" {
		c.Status = models.StatusPending
	}
	if c.InvoiceStatus == "" {
		c.InvoiceStatus = models.InvoiceNone
	}
	if err := validateStatusChange(c.Status, c.InvoiceStatus); err != nil {
		return models.Contract{}, err
	}
	if c.Type == "" {
		c.Type = models.TypeOther
	}

	var terms any
	if c.ExtractedTerms != nil {
		b, err := json.Marshal(c.ExtractedTerms)
		if err != nil {
			return models.Contract{}, err
		}
		terms = b
	}

	c.ID = uuid.NewString()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO contracts (
			id, user_id, brand, amount, due_date, status, contract_type,
			project_name, client_name, client_email,
			extracted_terms, summary, contract_text, file_name, file_url,
			invoice_status
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at, updated_at;
	`,
		c.ID, c.UserID, c.Brand, c.Amount, c.DueDate, c.Status, c.Type,
		nullIfEmpty(c.ProjectName), nullIfEmpty(c.ClientName), nullIfEmpty(c.ClientEmail),
		terms, nullIfEmpty(c.Summary), nullIfEmpty(c.ContractText),
		nullIfEmpty(c.FileName), nullIfEmpty(c.FileURL),
		c.InvoiceStatus,
	)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return models.Contract{}, err
	}
	return c, nil
}

// GetContract fetches a contract and enforces ownership; a contract that
// exists but belongs to someone else is indistinguishable from a missing
// one.
func (s *Store) GetContract(ctx context.Context, id, userID string) (models.Contract, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE id = $1 AND user_id = $2;
	`, id, userID)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contract{}, notFoundErrorf("contract %s not found", id)
	}
	if err != nil {
		return models.Contract{}, err
	}
	return c, nil
}

// getContractAny fetches a contract without an ownership check. Reserved for
// webhook and sweep paths where the caller is the system itself.
func (s *Store) getContractAny(ctx context.Context, id string) (models.Contract, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE id = $1;
	`, id)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contract{}, notFoundErrorf("contract %s not found", id)
	}
	if err != nil {
		return models.Contract{}, err
	}
	return c, nil
}

// ListContractsByUser returns every contract owned by userID, newest due
// date last so the dashboard can aggregate in one pass.
func (s *Store) ListContractsByUser(ctx context.Context, userID string) ([]models.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE user_id = $1
		ORDER BY due_date ASC, created_at ASC;
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateContractStatus applies a manual status edit after checking the
// status/invoice-status combination stays consistent.
func (s *Store) UpdateContractStatus(ctx context.Context, id, userID string, status models.ContractStatus) (models.Contract, error) {
	c, err := s.GetContract(ctx, id, userID)
	if err != nil {
		return models.Contract{}, err
	}
	if err := validateStatusChange(status, c.InvoiceStatus); err != nil {
		return models.Contract{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE contracts
		SET status = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3;
	`, status, id, userID)
	if err != nil {
		return models.Contract{}, err
	}
	c.Status = status
	return c, nil
}

// MarkContractPaid records a settled payment: status flips to paid, the
// invoice (if any) flips with it, and the actual payment timestamp is kept
// so monthly totals do not have to fall back to the due-date proxy.
func (s *Store) MarkContractPaid(ctx context.Context, contractID string, paidAt time.Time) (models.Contract, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE contracts
		SET status = $1,
		    invoice_status = CASE WHEN invoice_status = 'none' THEN invoice_status ELSE 'paid' END,
		    paid_at = $2,
		    updated_at = now()
		WHERE id = $3
		RETURNING `+contractColumns+`;
	`, models.StatusPaid, paidAt, contractID)
	c, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contract{}, notFoundErrorf("contract %s not found", contractID)
	}
	if err != nil {
		return models.Contract{}, err
	}
	return c, nil
}

// SaveInvoice stores a generated invoice document on the contract. A fresh
// invoice starts as draft; regeneration keeps the current invoice status.
func (s *Store) SaveInvoice(ctx context.Context, id, userID, number, html string) (models.Contract, error) {
	if number == "" {
		return models.Contract{}, validationErrorf("missing invoice number")
	}
	c, err := s.GetContract(ctx, id, userID)
	if err != nil {
		return models.Contract{}, err
	}
	status := c.InvoiceStatus
	if status == models.InvoiceNone {
		status = models.InvoiceDraft
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE contracts
		SET invoice_number = $1, invoice_html = $2, invoice_status = $3, updated_at = now()
		WHERE id = $4 AND user_id = $5;
	`, number, html, status, id, userID)
	if err != nil {
		return models.Contract{}, err
	}
	c.InvoiceNumber = number
	c.InvoiceHTML = html
	c.InvoiceStatus = status
	return c, nil
}

// UpdateInvoiceStatus moves the invoice sub-state, keeping the pair guard.
func (s *Store) UpdateInvoiceStatus(ctx context.Context, id, userID string, status models.InvoiceStatus) (models.Contract, error) {
	c, err := s.GetContract(ctx, id, userID)
	if err != nil {
		return models.Contract{}, err
	}
	contractStatus := c.Status
	if status == models.InvoiceSent && isReceivable(c.Status) {
		// Sending the invoice promotes the contract to invoiced.
		contractStatus = models.StatusInvoiced
	}
	if err := validateStatusChange(contractStatus, status); err != nil {
		return models.Contract{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE contracts
		SET invoice_status = $1, status = $2, updated_at = now()
		WHERE id = $3 AND user_id = $4;
	`, status, contractStatus, id, userID)
	if err != nil {
		return models.Contract{}, err
	}
	c.InvoiceStatus = status
	c.Status = contractStatus
	return c, nil
}

// AppendInvoiceHistory writes one line of the append-only invoice log.
func (s *Store) AppendInvoiceHistory(ctx context.Context, contractID, action, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoice_history (id, contract_id, action, detail)
		VALUES ($1, $2, $3, $4);
	`, uuid.NewString(), contractID, action, nullIfEmpty(detail))
	return err
}

// ListInvoiceHistory returns the invoice log, oldest first.
func (s *Store) ListInvoiceHistory(ctx context.Context, contractID string) ([]models.InvoiceHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, detail, created_at
		FROM invoice_history
		WHERE contract_id = $1
		ORDER BY created_at ASC;
	`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InvoiceHistoryEntry
	for rows.Next() {
		var e models.InvoiceHistoryEntry
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &detail, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRemindableContracts finds receivable contracts due inside
// [from, to] that have an email to remind.
func (s *Store) ListRemindableContracts(ctx context.Context, from, to time.Time) ([]models.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contractColumns+`
		FROM contracts
		WHERE status IN ($1, $2)
		  AND due_date >= $3
		  AND due_date <= $4
		ORDER BY due_date ASC;
	`, models.StatusPending, models.StatusInvoiced,
		from.Format(models.DueDateLayout), to.Format(models.DueDateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ClaimReminder records an idempotency key for (contract, kind, period)
// before any email goes out. It reports false when the key already exists,
// which means another sweep already handled this period.
func (s *Store) ClaimReminder(ctx context.Context, contractID, kind, periodKey string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reminder_claims (contract_id, kind, period_key)
		VALUES ($1, $2, $3)
		ON CONFLICT (contract_id, kind, period_key) DO NOTHING;
	`, contractID, kind, periodKey)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkReminderSent stamps the post-send marker.
func (s *Store) MarkReminderSent(ctx context.Context, contractID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE contracts
		SET last_reminder_at = $1, updated_at = now()
		WHERE id = $2;
	`, at, contractID)
	return err
}

// MarkOverdueContracts reclassifies receivable contracts past their due date
// and returns the affected rows. This is the only path to overdue.
func (s *Store) MarkOverdueContracts(ctx context.Context, today time.Time) ([]models.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE contracts
		SET status = $1,
		    invoice_status = CASE WHEN invoice_status IN ('sent', 'viewed') THEN 'overdue' ELSE invoice_status END,
		    updated_at = now()
		WHERE status IN ($2, $3)
		  AND due_date < $4
		RETURNING `+contractColumns+`;
	`, models.StatusOverdue, models.StatusPending, models.StatusInvoiced,
		today.Format(models.DueDateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertPaymentRecord logs a gateway payment against a contract.
func (s *Store) InsertPaymentRecord(ctx context.Context, p models.PaymentRecord) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, payment_intent_id, contract_id, user_id,
			amount, currency, customer_id, customer_email, status
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (payment_intent_id) DO NOTHING;
	`, p.ID, p.PaymentIntentID, p.ContractID, p.UserID,
		p.Amount, p.Currency, nullIfEmpty(p.CustomerID), nullIfEmpty(p.CustomerEmail), p.Status)
	return err
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
