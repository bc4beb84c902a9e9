package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samouzou/verza/app/config"
	"github.com/samouzou/verza/app/models"
)

// reminderKind is the idempotency namespace for due-date reminders.
const reminderKind = "due_reminder"

// sweepStore is the slice of Store the sweeper needs. Kept small so tests
// can drive the sweep with a fake.
type sweepStore interface {
	MarkOverdueContracts(ctx context.Context, today time.Time) ([]models.Contract, error)
	ListRemindableContracts(ctx context.Context, from, to time.Time) ([]models.Contract, error)
	ClaimReminder(ctx context.Context, contractID, kind, periodKey string) (bool, error)
	MarkReminderSent(ctx context.Context, contractID string, at time.Time) error
	AppendInvoiceHistory(ctx context.Context, contractID, action, detail string) error
	GetUser(ctx context.Context, uid string) (models.User, error)
}

// Sweeper runs the daily pass over all contracts: reclassify overdue rows,
// then queue reminder emails for contracts entering the due window.
type Sweeper struct {
	store sweepStore
	mail  MailEnqueuer
	from  string
	win   int

	// now is swappable in tests.
	now func() time.Time
}

func NewSweeper(store *Store, mail MailEnqueuer, mailCfg config.MailConfig, sweepCfg config.SweepConfig) *Sweeper {
	return &Sweeper{
		store: store,
		mail:  mail,
		from:  mailCfg.FromEmail,
		win:   sweepCfg.ReminderWindowDays,
		now:   time.Now,
	}
}

// Run executes RunOnce on startup and then every interval until the context
// is canceled. One failed pass never stops the loop.
func (sw *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := sw.RunOnce(ctx); err != nil {
			log.Printf("sweep failed err=%v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep. Per-contract failures are logged and
// skipped so one bad row cannot block the rest of the pass.
func (sw *Sweeper) RunOnce(ctx context.Context) error {
	today := midnightOf(sw.now())

	flipped, err := sw.store.MarkOverdueContracts(ctx, today)
	if err != nil {
		return fmt.Errorf("marking overdue contracts: %w", err)
	}
	for _, c := range flipped {
		log.Printf("contract overdue id=%s due=%s", c.ID, c.DueDate)
		if err := sw.store.AppendInvoiceHistory(ctx, c.ID, "status_overdue", "past due date "+c.DueDate); err != nil {
			log.Printf("history append failed contract=%s err=%v", c.ID, err)
		}
	}

	// Window is [today, today+win]: contracts due today still get a nudge.
	due, err := sw.store.ListRemindableContracts(ctx, today, today.AddDate(0, 0, sw.win))
	if err != nil {
		return fmt.Errorf("listing remindable contracts: %w", err)
	}

	sent := 0
	for _, c := range due {
		if sw.remindOne(ctx, c, today) {
			sent++
		}
	}

	log.Printf("sweep done overdue=%d window=%d reminders=%d", len(flipped), len(due), sent)
	return nil
}

func (sw *Sweeper) remindOne(ctx context.Context, c models.Contract, today time.Time) bool {
	user, err := sw.store.GetUser(ctx, c.UserID)
	if err != nil {
		log.Printf("reminder skipped contract=%s err=%v", c.ID, err)
		return false
	}
	if user.Email == "" {
		log.Printf("reminder skipped contract=%s reason=no-email", c.ID)
		return false
	}

	// Claim before sending. One claim per contract per due date keeps
	// redelivery and overlapping sweeps at-most-once on the send side.
	periodKey := c.DueDate
	claimed, err := sw.store.ClaimReminder(ctx, c.ID, reminderKind, periodKey)
	if err != nil {
		log.Printf("reminder claim failed contract=%s err=%v", c.ID, err)
		return false
	}
	if !claimed {
		return false
	}

	msg := reminderMail(c, user.Email, sw.from)
	msg.IdempotencyKey = fmt.Sprintf("%s:%s:%s", reminderKind, c.ID, periodKey)
	if err := sw.mail.Enqueue(ctx, msg); err != nil {
		log.Printf("reminder enqueue failed contract=%s err=%v", c.ID, err)
		return false
	}

	if err := sw.store.MarkReminderSent(ctx, c.ID, sw.now()); err != nil {
		log.Printf("reminder marker failed contract=%s err=%v", c.ID, err)
	}
	if err := sw.store.AppendInvoiceHistory(ctx, c.ID, "reminder_sent", "due "+c.DueDate); err != nil {
		log.Printf("history append failed contract=%s err=%v", c.ID, err)
	}
	log.Printf("reminder queued contract=%s due=%s to=%s", c.ID, c.DueDate, user.Email)
	return true
}
