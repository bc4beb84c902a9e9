package app

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/samouzou/verza/app/models"
)

// CreateContractPayment opens a payment intent for a contract and returns
// the client secret the frontend needs to collect the payment.
func (s *Server) CreateContractPayment(c *gin.Context) {
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

	intent, err := s.payments.CreateContractPaymentIntent(ctx, contract, contract.ClientEmail)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Printf("payment intent created contract=%s intent=%s amount=%s", contract.ID, intent.ID, intentAmount(intent))
	c.JSON(http.StatusOK, gin.H{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
	})
}

// CreateCheckoutSession starts a subscription checkout for the caller.
func (s *Server) CreateCheckoutSession(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}

	customerID, err := s.payments.EnsureCustomer(ctx, s.store, user)
	if err != nil {
		respondError(c, err)
		return
	}

	url, err := s.payments.CreateCheckoutSession(ctx, customerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreatePortalSession opens the billing portal for the caller.
func (s *Server) CreatePortalSession(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	user, err := s.store.GetUser(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}
	if user.StripeCustomerID == "" {
		respondError(c, validationErrorf("no billing customer for user"))
		return
	}

	url, err := s.payments.CreatePortalSession(c.Request.Context(), user.StripeCustomerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ConnectPayoutAccount provisions the caller's Express payout account if
// needed and returns a fresh onboarding link.
func (s *Server) ConnectPayoutAccount(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}

	accountID := user.StripeAccountID
	if accountID == "" {
		accountID, err = s.payments.CreateConnectedAccount(ctx, user)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := s.store.SetConnectedAccount(ctx, user.UID, accountID, models.AccountOnboardingIncomplete); err != nil {
			respondError(c, err)
			return
		}
	}

	url, err := s.payments.CreateAccountLink(ctx, accountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accountId":     accountID,
		"onboardingUrl": url,
	})
}

// StripeWebhook verifies and dispatches gateway events. Signature failures
// are rejected with 400; processing failures return 500 so the gateway
// retries. Handlers are idempotent, so retried deliveries are safe.
func (s *Server) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		respondError(c, webhookError("reading webhook payload", err))
		return
	}

	if s.cfg.Stripe.WebhookSecret == "" {
		log.Printf("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		s.cfg.Stripe.WebhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		respondError(c, webhookError("signature verification failed", err))
		return
	}

	ctx := c.Request.Context()
	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			respondError(c, webhookError("invalid payment intent payload", err))
			return
		}
		if err := settlePayment(ctx, s.store, s.mailq, s.cfg.Mail.FromEmail, &pi, time.Unix(event.Created, 0)); err != nil {
			respondError(c, err)
			return
		}

	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			respondError(c, webhookError("invalid session payload", err))
			return
		}
		customerID := customerIDOf(sess.Customer)
		if customerID == "" {
			respondError(c, webhookError("session missing customer id", nil))
			return
		}
		subscriptionID := ""
		if sess.Subscription != nil {
			subscriptionID = sess.Subscription.ID
		}
		if err := s.store.UpdateSubscriptionByCustomer(ctx, customerID, subscriptionID, models.SubActive, nil); err != nil {
			respondError(c, err)
			return
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			respondError(c, webhookError("invalid subscription payload", err))
			return
		}
		customerID := customerIDOf(sub.Customer)
		if customerID == "" {
			respondError(c, webhookError("subscription missing customer id", nil))
			return
		}
		status, endsAt := subscriptionState(&sub)
		if err := s.store.UpdateSubscriptionByCustomer(ctx, customerID, sub.ID, status, endsAt); err != nil {
			respondError(c, err)
			return
		}

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			respondError(c, webhookError("invalid invoice payload", err))
			return
		}
		customerID := customerIDOf(inv.Customer)
		if customerID == "" {
			respondError(c, webhookError("invoice missing customer id", nil))
			return
		}
		if err := s.store.UpdateSubscriptionByCustomer(ctx, customerID, "", models.SubPastDue, nil); err != nil {
			respondError(c, err)
			return
		}

	case "account.updated":
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			respondError(c, webhookError("invalid account payload", err))
			return
		}
		if err := s.store.UpdateAccountByAccountID(ctx, acct.ID, connectedAccountStatus(&acct), acct.ChargesEnabled, acct.PayoutsEnabled); err != nil {
			respondError(c, err)
			return
		}

	default:
		// Unhandled events are acknowledged so the gateway stops retrying.
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// settleStore is the slice of Store the settle flow needs. Kept small so
// tests can drive settlement with a fake.
type settleStore interface {
	getContractAny(ctx context.Context, id string) (models.Contract, error)
	MarkContractPaid(ctx context.Context, contractID string, paidAt time.Time) (models.Contract, error)
	InsertPaymentRecord(ctx context.Context, p models.PaymentRecord) error
	AppendInvoiceHistory(ctx context.Context, contractID, action, detail string) error
	GetUser(ctx context.Context, uid string) (models.User, error)
}

// settlePayment marks the contract paid at the event's timestamp, logs the
// payment, and queues a best-effort receipt. Replays are absorbed by the
// unique payment intent id and the idempotent paid transition.
func settlePayment(ctx context.Context, store settleStore, mailq MailEnqueuer, from string, pi *stripe.PaymentIntent, paidAt time.Time) error {
	contractID := pi.Metadata["contractId"]
	userID := pi.Metadata["userId"]
	if contractID == "" || userID == "" {
		return webhookError("payment intent missing contract metadata", nil)
	}

	// The metadata is set by us at intent creation, but cross-check it
	// against the stored owner before flipping anything.
	existing, err := store.getContractAny(ctx, contractID)
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return webhookError("payment intent metadata does not match contract owner", nil)
	}

	contract, err := store.MarkContractPaid(ctx, contractID, paidAt)
	if err != nil {
		return err
	}
	log.Printf("contract paid id=%s intent=%s amount=%s", contract.ID, pi.ID, intentAmount(pi))

	if err := store.InsertPaymentRecord(ctx, models.PaymentRecord{
		PaymentIntentID: pi.ID,
		ContractID:      contract.ID,
		UserID:          userID,
		Amount:          pi.Amount,
		Currency:        string(pi.Currency),
		CustomerID:      customerIDOf(pi.Customer),
		CustomerEmail:   pi.ReceiptEmail,
		Status:          string(pi.Status),
	}); err != nil {
		return err
	}
	if err := store.AppendInvoiceHistory(ctx, contract.ID, "payment_received", pi.ID); err != nil {
		log.Printf("history append failed contract=%s err=%v", contract.ID, err)
	}

	// The receipt is best effort: a queue outage must not fail the webhook.
	if user, err := store.GetUser(ctx, userID); err == nil && user.Email != "" {
		msg := receiptMail(contract, user.Email, from, pi.Amount, string(pi.Currency))
		msg.IdempotencyKey = "receipt:" + pi.ID
		if err := mailq.Enqueue(ctx, msg); err != nil {
			log.Printf("receipt enqueue failed contract=%s err=%v", contract.ID, err)
		}
	}
	return nil
}

func customerIDOf(cust *stripe.Customer) string {
	if cust == nil {
		return ""
	}
	return cust.ID
}

// subscriptionState maps the gateway subscription to our status enum plus
// the effective end date, when one is known.
func subscriptionState(sub *stripe.Subscription) (models.SubscriptionStatus, *time.Time) {
	var endsAt *time.Time
	if sub.CancelAtPeriodEnd && sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0)
		endsAt = &t
	}
	if sub.EndedAt > 0 {
		t := time.Unix(sub.EndedAt, 0)
		endsAt = &t
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive:
		return models.SubActive, endsAt
	case stripe.SubscriptionStatusTrialing:
		return models.SubTrialing, endsAt
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubPastDue, endsAt
	case stripe.SubscriptionStatusCanceled:
		return models.SubCanceled, endsAt
	case stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubIncomplete, endsAt
	default:
		return models.SubNone, endsAt
	}
}
