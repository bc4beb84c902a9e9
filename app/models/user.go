package models

import "time"

// SubscriptionStatus mirrors the billing provider's subscription state.
type SubscriptionStatus string

const (
	SubTrialing   SubscriptionStatus = "trialing"
	SubActive     SubscriptionStatus = "active"
	SubPastDue    SubscriptionStatus = "past_due"
	SubCanceled   SubscriptionStatus = "canceled"
	SubIncomplete SubscriptionStatus = "incomplete"
	SubNone       SubscriptionStatus = "none"
)

// AccountStatus mirrors the connected payment account's onboarding state.
type AccountStatus string

const (
	AccountNone                 AccountStatus = "none"
	AccountOnboardingIncomplete AccountStatus = "onboarding_incomplete"
	AccountPendingVerification  AccountStatus = "pending_verification"
	AccountActive               AccountStatus = "active"
	AccountRestricted           AccountStatus = "restricted"
	AccountRestrictedSoon       AccountStatus = "restricted_soon"
)

// User carries identity plus two independently drifting sub-states: the
// billing subscription and the connected payment account. Both are corrected
// lazily on each sign-in against what the external systems last told us.
type User struct {
	UID         string `db:"uid" json:"uid"`
	Email       string `db:"email" json:"email,omitempty"`
	DisplayName string `db:"display_name" json:"displayName,omitempty"`
	AvatarURL   string `db:"avatar_url" json:"avatarUrl,omitempty"`

	StripeCustomerID     string             `db:"stripe_customer_id" json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string             `db:"stripe_subscription_id" json:"stripeSubscriptionId,omitempty"`
	SubscriptionStatus   SubscriptionStatus `db:"subscription_status" json:"subscriptionStatus"`
	TrialEndsAt          *time.Time         `db:"trial_ends_at" json:"trialEndsAt,omitempty"`
	SubscriptionEndsAt   *time.Time         `db:"subscription_ends_at" json:"subscriptionEndsAt,omitempty"`
	TrialExtensionUsed   bool               `db:"trial_extension_used" json:"trialExtensionUsed"`

	StripeAccountID     string        `db:"stripe_account_id" json:"stripeAccountId,omitempty"`
	StripeAccountStatus AccountStatus `db:"stripe_account_status" json:"stripeAccountStatus"`
	ChargesEnabled      bool          `db:"charges_enabled" json:"stripeChargesEnabled"`
	PayoutsEnabled      bool          `db:"payouts_enabled" json:"stripePayoutsEnabled"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// TrialDays is the free trial granted to a newly created user.
const TrialDays = 7
