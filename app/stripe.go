package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/samouzou/verza/app/config"
	"github.com/samouzou/verza/app/models"
)

// Payments wraps the Stripe client with the operations the API needs:
// one-off contract payments, subscription billing, and Express onboarding
// for payout accounts. The client is injected so tests and multi-tenant
// setups don't fight over a package-level key.
type Payments struct {
	api *client.API
	cfg config.StripeConfig
}

func NewPayments(cfg config.StripeConfig) *Payments {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Payments{api: api, cfg: cfg}
}

// EnsureCustomer finds or creates the Stripe customer backing a user. The
// customer id is persisted on first creation so later calls are a no-op.
func (p *Payments) EnsureCustomer(ctx context.Context, store *Store, user models.User) (string, error) {
	if user.UID == "" {
		return "", validationErrorf("missing user id")
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.DisplayName),
		Metadata: map[string]string{
			"uid": user.UID,
		},
	}
	params.Context = ctx
	cust, err := p.api.Customers.New(params)
	if err != nil {
		return "", gatewayError("creating stripe customer", err)
	}

	if err := store.SetStripeCustomerID(ctx, user.UID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}

// CreateContractPaymentIntent opens a PaymentIntent for the contract amount.
// Contract and owner ids ride along as metadata so the webhook can settle
// the right row without trusting the payload body.
func (p *Payments) CreateContractPaymentIntent(ctx context.Context, c models.Contract, payerEmail string) (*stripe.PaymentIntent, error) {
	if c.Amount <= 0 {
		return nil, validationErrorf("contract %s has no payable amount", c.ID)
	}
	if c.Status == models.StatusPaid {
		return nil, validationErrorf("contract %s is already paid", c.ID)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(math.Round(c.Amount * 100))),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"contractId": c.ID,
			"userId":     c.UserID,
		},
	}
	if payerEmail != "" {
		params.ReceiptEmail = stripe.String(payerEmail)
	}
	params.Context = ctx

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, gatewayError("creating payment intent", err)
	}
	return intent, nil
}

// CreateCheckoutSession starts a subscription checkout for the pro plan.
func (p *Payments) CreateCheckoutSession(ctx context.Context, customerID string) (string, error) {
	priceID := p.cfg.PriceIDProMonthly
	frontendURL := strings.TrimRight(p.cfg.FrontendURL, "/")
	if priceID == "" || frontendURL == "" {
		return "", gatewayError("billing not configured", nil)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/billing/success"),
		CancelURL:  stripe.String(frontendURL + "/billing/cancel"),
	}
	params.Context = ctx

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", gatewayError("creating checkout session", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the customer billing portal.
func (p *Payments) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	frontendURL := strings.TrimRight(p.cfg.FrontendURL, "/")
	if frontendURL == "" {
		return "", gatewayError("billing not configured", nil)
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(frontendURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", gatewayError("creating portal session", err)
	}
	return sess.URL, nil
}

// CreateConnectedAccount provisions an Express account for creator payouts.
func (p *Payments) CreateConnectedAccount(ctx context.Context, user models.User) (string, error) {
	params := &stripe.AccountParams{
		Type:  stripe.String(string(stripe.AccountTypeExpress)),
		Email: stripe.String(user.Email),
		Metadata: map[string]string{
			"uid": user.UID,
		},
	}
	params.Context = ctx

	acct, err := p.api.Accounts.New(params)
	if err != nil {
		return "", gatewayError("creating connected account", err)
	}
	return acct.ID, nil
}

// CreateAccountLink returns the hosted onboarding URL for a connected
// account. Stripe expires these quickly, so one is minted per request.
func (p *Payments) CreateAccountLink(ctx context.Context, accountID string) (string, error) {
	frontendURL := strings.TrimRight(p.cfg.FrontendURL, "/")
	if frontendURL == "" {
		return "", gatewayError("billing not configured", nil)
	}

	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(frontendURL + "/settings/payouts?refresh=1"),
		ReturnURL:  stripe.String(frontendURL + "/settings/payouts"),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := p.api.AccountLinks.New(params)
	if err != nil {
		return "", gatewayError("creating account link", err)
	}
	return link.URL, nil
}

// connectedAccountStatus collapses a Stripe account's verification state
// into the coarse status shown on the payouts card.
func connectedAccountStatus(acct *stripe.Account) models.AccountStatus {
	if acct == nil {
		return models.AccountNone
	}
	if !acct.DetailsSubmitted {
		return models.AccountOnboardingIncomplete
	}
	if acct.ChargesEnabled && acct.PayoutsEnabled {
		return models.AccountActive
	}
	if req := acct.Requirements; req != nil {
		if req.DisabledReason != "" || len(req.CurrentlyDue) > 0 {
			return models.AccountRestricted
		}
		if len(req.EventuallyDue) > 0 {
			return models.AccountRestrictedSoon
		}
	}
	return models.AccountPendingVerification
}

// intentAmount formats a settled amount for logs and receipts.
func intentAmount(pi *stripe.PaymentIntent) string {
	return fmt.Sprintf("%.2f %s", float64(pi.Amount)/100, strings.ToUpper(string(pi.Currency)))
}
