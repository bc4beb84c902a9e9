package app

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/samouzou/verza/app/config"
	"github.com/samouzou/verza/app/models"
	"github.com/samouzou/verza/auth"
)

// Server bundles the injected dependencies behind the HTTP handlers. Nothing
// here reaches for package-level state.
type Server struct {
	store     *Store
	payments  *Payments
	extractor *Extractor
	mailq     MailEnqueuer
	hub       *EventHub
	cfg       *config.Config
}

func NewServer(store *Store, payments *Payments, extractor *Extractor, mailq MailEnqueuer, hub *EventHub, cfg *config.Config) *Server {
	return &Server{
		store:     store,
		payments:  payments,
		extractor: extractor,
		mailq:     mailq,
		hub:       hub,
		cfg:       cfg,
	}
}

// respondError maps a tagged error to its HTTP status. Untagged errors are
// logged and hidden behind a generic 500.
func respondError(c *gin.Context, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error path=%s err=%v", c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func requireClaims(c *gin.Context) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok || claims.Subject == "" {
		respondError(c, authErrorf("missing auth context"))
		return nil, false
	}
	return claims, true
}

// Health is a public health check endpoint.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Me returns the authenticated user's profile, including subscription and
// payout account state.
func (s *Server) Me(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	user, err := s.store.GetUser(c.Request.Context(), claims.Subject)
	if KindOf(err) == KindNotFound {
		// Profile creation normally happens in the auth hook; recover here
		// if that write lost a race.
		if err := s.store.UpsertUserFromClaims(c.Request.Context(), claims); err != nil {
			respondError(c, err)
			return
		}
		user, err = s.store.GetUser(c.Request.Context(), claims.Subject)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListContracts returns all of the caller's contracts, soonest due first.
func (s *Server) ListContracts(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	contracts, err := s.store.ListContractsByUser(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contracts": contracts,
		"count":     len(contracts),
	})
}

// GetContract returns one contract with its invoice history attached.
func (s *Server) GetContract(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	contract, err := s.store.GetContract(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := s.store.ListInvoiceHistory(c.Request.Context(), contract.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	contract.InvoiceHistory = history

	c.JSON(http.StatusOK, contract)
}

type createContractRequest struct {
	Brand        string                 `json:"brand"`
	Amount       float64                `json:"amount"`
	DueDate      string                 `json:"dueDate"`
	Type         models.ContractType    `json:"contractType"`
	ProjectName  string                 `json:"projectName"`
	ClientName   string                 `json:"clientName"`
	ClientEmail  string                 `json:"clientEmail"`
	ContractText string                 `json:"contractText"`
	FileName     string                 `json:"fileName"`
	FileURL      string                 `json:"fileUrl"`
	Summary      string                 `json:"summary"`
	Terms        *models.ExtractedTerms `json:"extractedTerms"`
}

// CreateContract stores a new contract for the caller. Field validation
// happens in the store.
func (s *Server) CreateContract(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, validationErrorf("invalid request body: %v", err))
		return
	}

	contract, err := s.store.CreateContract(c.Request.Context(), models.Contract{
		UserID:         claims.Subject,
		Brand:          strings.TrimSpace(req.Brand),
		Amount:         req.Amount,
		DueDate:        req.DueDate,
		Type:           req.Type,
		ProjectName:    req.ProjectName,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ContractText:   req.ContractText,
		FileName:       req.FileName,
		FileURL:        req.FileURL,
		Summary:        req.Summary,
		ExtractedTerms: req.Terms,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, contract)
}

type updateStatusRequest struct {
	Status models.ContractStatus `json:"status"`
}

// UpdateContractStatus applies a manual status change. The store runs the
// consistency guard against the current invoice status.
func (s *Server) UpdateContractStatus(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, validationErrorf("invalid request body: %v", err))
		return
	}

	contract, err := s.store.UpdateContractStatus(c.Request.Context(), c.Param("id"), claims.Subject, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

type extractRequest struct {
	ContractText string `json:"contractText"`
}

// ExtractContract runs the model extraction over raw contract text and
// returns the structured details plus a plain-language summary. Nothing is
// stored; the client reviews the result before creating the contract.
func (s *Server) ExtractContract(c *gin.Context) {
	if _, ok := requireClaims(c); !ok {
		return
	}

	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, validationErrorf("invalid request body: %v", err))
		return
	}

	details, err := s.extractor.Extract(c.Request.Context(), req.ContractText)
	if err != nil {
		respondError(c, err)
		return
	}

	// The summary is advisory; a failed summary never blocks extraction.
	summary, err := s.extractor.Summarize(c.Request.Context(), req.ContractText)
	if err != nil {
		log.Printf("summary failed err=%v", err)
		summary = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"details": details,
		"summary": summary,
	})
}

// Dashboard aggregates the caller's contracts into the earnings overview.
func (s *Server) Dashboard(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	contracts, err := s.store.ListContractsByUser(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Aggregate(contracts, time.Now()))
}

// GenerateInvoice renders (or re-renders) the invoice document for a
// contract and stores it as a draft.
func (s *Server) GenerateInvoice(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	contract, err := s.store.GetContract(ctx, c.Param("id"), claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}
	if contract.Status == models.StatusPaid {
		respondError(c, validationErrorf("contract %s is already paid", contract.ID))
		return
	}

	user, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}

	// Regeneration keeps the original invoice number.
	number := contract.InvoiceNumber
	if number == "" {
		number = InvoiceNumber(contract, time.Now())
	}

	html, err := RenderInvoiceHTML(contract, number, firstNonEmpty(user.DisplayName, user.Email), s.payURL(contract.ID))
	if err != nil {
		respondError(c, err)
		return
	}

	contract, err = s.store.SaveInvoice(ctx, contract.ID, claims.Subject, number, html)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.store.AppendInvoiceHistory(ctx, contract.ID, "invoice_generated", number); err != nil {
		log.Printf("history append failed contract=%s err=%v", contract.ID, err)
	}

	c.JSON(http.StatusOK, contract)
}

type sendInvoiceRequest struct {
	To string `json:"to"`
}

// SendInvoice queues the generated invoice for email delivery and promotes
// the invoice to sent.
func (s *Server) SendInvoice(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	var req sendInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, validationErrorf("invalid request body: %v", err))
		return
	}

	ctx := c.Request.Context()
	contract, err := s.store.GetContract(ctx, c.Param("id"), claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}
	if contract.InvoiceStatus == models.InvoiceNone || contract.InvoiceHTML == "" {
		respondError(c, validationErrorf("contract %s has no generated invoice", contract.ID))
		return
	}

	to := firstNonEmpty(req.To, contract.ClientEmail)
	if to == "" {
		respondError(c, validationErrorf("no recipient for invoice: pass \"to\" or set the contract client email"))
		return
	}

	user, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}

	msg := invoiceMail(contract, firstNonEmpty(user.DisplayName, user.Email), to, s.cfg.Mail.FromEmail, s.payURL(contract.ID))
	msg.IdempotencyKey = "invoice:" + contract.ID + ":" + contract.InvoiceNumber
	if err := s.mailq.Enqueue(ctx, msg); err != nil {
		respondError(c, gatewayError("queueing invoice email", err))
		return
	}

	contract, err = s.store.UpdateInvoiceStatus(ctx, contract.ID, claims.Subject, models.InvoiceSent)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.store.AppendInvoiceHistory(ctx, contract.ID, "invoice_sent", "to "+to); err != nil {
		log.Printf("history append failed contract=%s err=%v", contract.ID, err)
	}

	c.JSON(http.StatusOK, contract)
}

type invoiceStatusRequest struct {
	Status models.InvoiceStatus `json:"status"`
}

// UpdateInvoiceStatus applies a manual invoice lifecycle change, e.g.
// marking an invoice viewed after a client opens it.
func (s *Server) UpdateInvoiceStatus(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	var req invoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, validationErrorf("invalid request body: %v", err))
		return
	}

	contract, err := s.store.UpdateInvoiceStatus(c.Request.Context(), c.Param("id"), claims.Subject, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// InvoiceHistory returns the append-only action log for a contract's
// invoice.
func (s *Server) InvoiceHistory(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	// Ownership check before exposing the log.
	contract, err := s.store.GetContract(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}

	history, err := s.store.ListInvoiceHistory(c.Request.Context(), contract.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contractId": contract.ID,
		"history":    history,
	})
}

func (s *Server) payURL(contractID string) string {
	frontendURL := strings.TrimRight(s.cfg.Stripe.FrontendURL, "/")
	if frontendURL == "" {
		return ""
	}
	return frontendURL + "/pay/" + contractID
}
