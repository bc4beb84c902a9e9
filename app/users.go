// User persistence helpers for authenticated requests.
package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/samouzou/verza/app/models"
	"github.com/samouzou/verza/auth"
)

// UpsertUserFromClaims runs on every authenticated request. A first sign-in
// creates the profile with a fresh trial; later sign-ins merge identity
// fields that may have changed at the provider. Billing state is never
// overwritten here - the webhook owns it.
func (s *Store) UpsertUserFromClaims(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.Subject == "" {
		return nil
	}

	email := readStringClaim(claims.Raw, "email")
	name := readStringClaim(claims.Raw, "name")
	avatar := readStringClaim(claims.Raw, "picture")
	if name == "" && email != "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	trialEndsAt := time.Now().AddDate(0, 0, models.TrialDays)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			uid, email, display_name, avatar_url,
			subscription_status, trial_ends_at, stripe_account_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (uid) DO NOTHING;
	`, claims.Subject, nullIfEmpty(email), nullIfEmpty(name), nullIfEmpty(avatar),
		models.SubTrialing, trialEndsAt, models.AccountNone)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil // fresh profile, nothing to merge
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE users
		SET email        = COALESCE(NULLIF($1, ''), email),
		    display_name = COALESCE(NULLIF($2, ''), display_name),
		    avatar_url   = COALESCE(NULLIF($3, ''), avatar_url)
		WHERE uid = $4;
	`, email, name, avatar, claims.Subject)
	return err
}

// GetUser loads a user profile.
func (s *Store) GetUser(ctx context.Context, uid string) (models.User, error) {
	var (
		u         models.User
		email     sql.NullString
		name      sql.NullString
		avatar    sql.NullString
		custID    sql.NullString
		subID     sql.NullString
		trialEnds sql.NullTime
		subEnds   sql.NullTime
		accountID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, email, display_name, avatar_url,
		       stripe_customer_id, stripe_subscription_id, subscription_status,
		       trial_ends_at, subscription_ends_at, trial_extension_used,
		       stripe_account_id, stripe_account_status, charges_enabled, payouts_enabled,
		       created_at
		FROM users
		WHERE uid = $1;
	`, uid).Scan(
		&u.UID, &email, &name, &avatar,
		&custID, &subID, &u.SubscriptionStatus,
		&trialEnds, &subEnds, &u.TrialExtensionUsed,
		&accountID, &u.StripeAccountStatus, &u.ChargesEnabled, &u.PayoutsEnabled,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, notFoundErrorf("user %s not found", uid)
	}
	if err != nil {
		return models.User{}, err
	}
	u.Email = email.String
	u.DisplayName = name.String
	u.AvatarURL = avatar.String
	u.StripeCustomerID = custID.String
	u.StripeSubscriptionID = subID.String
	u.StripeAccountID = accountID.String
	if trialEnds.Valid {
		t := trialEnds.Time
		u.TrialEndsAt = &t
	}
	if subEnds.Valid {
		t := subEnds.Time
		u.SubscriptionEndsAt = &t
	}
	return u, nil
}

// SetStripeCustomerID stores the lazily created billing customer id.
func (s *Store) SetStripeCustomerID(ctx context.Context, uid, customerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET stripe_customer_id = $1
		WHERE uid = $2;
	`, customerID, uid)
	return err
}

// UpdateSubscriptionByCustomer applies billing webhook state keyed by the
// external customer id.
func (s *Store) UpdateSubscriptionByCustomer(ctx context.Context, customerID, subscriptionID string, status models.SubscriptionStatus, endsAt *time.Time) error {
	if customerID == "" {
		return validationErrorf("missing stripe customer id")
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET stripe_subscription_id = COALESCE(NULLIF($1, ''), stripe_subscription_id),
		    subscription_status    = $2,
		    subscription_ends_at   = $3,
		    updated_at             = now()
		WHERE stripe_customer_id = $4;
	`, subscriptionID, status, nullableTime(endsAt), customerID)
	return err
}

// SetConnectedAccount stores the payment account created during onboarding.
func (s *Store) SetConnectedAccount(ctx context.Context, uid, accountID string, status models.AccountStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET stripe_account_id = $1, stripe_account_status = $2, updated_at = now()
		WHERE uid = $3;
	`, accountID, status, uid)
	return err
}

// UpdateAccountByAccountID applies account.updated webhook state:
// onboarding status plus the charges/payouts capability flags.
func (s *Store) UpdateAccountByAccountID(ctx context.Context, accountID string, status models.AccountStatus, chargesEnabled, payoutsEnabled bool) error {
	if accountID == "" {
		return validationErrorf("missing stripe account id")
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET stripe_account_status = $1,
		    charges_enabled       = $2,
		    payouts_enabled       = $3,
		    updated_at            = now()
		WHERE stripe_account_id = $4;
	`, status, chargesEnabled, payoutsEnabled, accountID)
	return err
}

func readStringClaim(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	val, ok := raw[key]
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
