package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samouzou/verza/app/models"
)

type fakeSweepStore struct {
	overdue    []models.Contract
	overdueErr error
	remindable []models.Contract
	users      map[string]models.User
	claims     map[string]bool
	claimErr   error

	markedSent []string
	history    []string
	listFrom   time.Time
	listTo     time.Time
}

func (f *fakeSweepStore) MarkOverdueContracts(_ context.Context, _ time.Time) ([]models.Contract, error) {
	return f.overdue, f.overdueErr
}

func (f *fakeSweepStore) ListRemindableContracts(_ context.Context, from, to time.Time) ([]models.Contract, error) {
	f.listFrom, f.listTo = from, to
	return f.remindable, nil
}

func (f *fakeSweepStore) ClaimReminder(_ context.Context, contractID, kind, periodKey string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	key := contractID + "/" + kind + "/" + periodKey
	if f.claims[key] {
		return false, nil
	}
	if f.claims == nil {
		f.claims = map[string]bool{}
	}
	f.claims[key] = true
	return true, nil
}

func (f *fakeSweepStore) MarkReminderSent(_ context.Context, contractID string, _ time.Time) error {
	f.markedSent = append(f.markedSent, contractID)
	return nil
}

func (f *fakeSweepStore) AppendInvoiceHistory(_ context.Context, contractID, action, _ string) error {
	f.history = append(f.history, contractID+":"+action)
	return nil
}

func (f *fakeSweepStore) GetUser(_ context.Context, uid string) (models.User, error) {
	u, ok := f.users[uid]
	if !ok {
		return models.User{}, notFoundErrorf("user %s not found", uid)
	}
	return u, nil
}

type fakeEnqueuer struct {
	sent []models.MailMessage
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msg models.MailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func ownedContract(id string, status models.ContractStatus, amount float64, due string) models.Contract {
	c := contract(id, status, amount, due)
	c.UserID = "u1"
	return c
}

func newTestSweeper(store *fakeSweepStore, mail *fakeEnqueuer) *Sweeper {
	return &Sweeper{
		store: store,
		mail:  mail,
		from:  "billing@verza.example",
		win:   3,
		now: func() time.Time {
			return time.Date(2025, time.June, 15, 9, 30, 0, 0, time.UTC)
		},
	}
}

func TestSweepQueuesRemindersInWindow(t *testing.T) {
	store := &fakeSweepStore{
		remindable: []models.Contract{
			ownedContract("c1", models.StatusPending, 500, "2025-06-17"),
			ownedContract("c2", models.StatusInvoiced, 800, "2025-06-18"),
		},
		users: map[string]models.User{"u1": {UID: "u1", Email: "creator@example.com"}},
	}
	mail := &fakeEnqueuer{}

	if err := newTestSweeper(store, mail).RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if got := len(mail.sent); got != 2 {
		t.Fatalf("queued %d reminders, want 2", got)
	}
	if mail.sent[0].Kind != models.MailReminder || mail.sent[0].To != "creator@example.com" {
		t.Fatalf("unexpected message: %+v", mail.sent[0])
	}
	if mail.sent[0].IdempotencyKey == "" {
		t.Fatal("reminder missing idempotency key")
	}
	if len(store.markedSent) != 2 {
		t.Fatalf("marked sent %v, want both contracts", store.markedSent)
	}

	wantFrom := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	if !store.listFrom.Equal(wantFrom) || !store.listTo.Equal(wantFrom.AddDate(0, 0, 3)) {
		t.Fatalf("window [%v, %v], want [%v, %v]", store.listFrom, store.listTo, wantFrom, wantFrom.AddDate(0, 0, 3))
	}
}

func TestSweepSecondRunSendsNothing(t *testing.T) {
	store := &fakeSweepStore{
		remindable: []models.Contract{ownedContract("c1", models.StatusPending, 500, "2025-06-17")},
		users:      map[string]models.User{"u1": {UID: "u1", Email: "creator@example.com"}},
	}
	mail := &fakeEnqueuer{}
	sw := newTestSweeper(store, mail)

	for i := 0; i < 2; i++ {
		if err := sw.RunOnce(context.Background()); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}
	if got := len(mail.sent); got != 1 {
		t.Fatalf("queued %d reminders across two runs, want 1", got)
	}
}

func TestSweepMarksOverdueWithHistory(t *testing.T) {
	store := &fakeSweepStore{
		overdue: []models.Contract{ownedContract("c3", models.StatusOverdue, 900, "2025-06-10")},
	}
	mail := &fakeEnqueuer{}

	if err := newTestSweeper(store, mail).RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(store.history) != 1 || store.history[0] != "c3:status_overdue" {
		t.Fatalf("history = %v", store.history)
	}
}

func TestSweepSkipsUserWithoutEmail(t *testing.T) {
	store := &fakeSweepStore{
		remindable: []models.Contract{
			ownedContract("c1", models.StatusPending, 500, "2025-06-17"),
			ownedContract("c2", models.StatusPending, 600, "2025-06-17"),
		},
		users: map[string]models.User{"u1": {UID: "u1"}},
	}
	// The fake list gives both contracts owner u1, who has no email.
	mail := &fakeEnqueuer{}

	if err := newTestSweeper(store, mail).RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(mail.sent) != 0 {
		t.Fatalf("queued %d reminders for a user with no email", len(mail.sent))
	}
	if len(store.markedSent) != 0 {
		t.Fatalf("marked sent %v without sending", store.markedSent)
	}
}

func TestSweepIsolatesPerContractFailures(t *testing.T) {
	store := &fakeSweepStore{
		remindable: []models.Contract{
			{ID: "c1", UserID: "missing", Status: models.StatusPending, DueDate: "2025-06-17"},
			ownedContract("c2", models.StatusPending, 600, "2025-06-18"),
		},
		users: map[string]models.User{"u1": {UID: "u1", Email: "creator@example.com"}},
	}
	mail := &fakeEnqueuer{}

	if err := newTestSweeper(store, mail).RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0].ContractID != "c2" {
		t.Fatalf("sent = %+v, want only c2", mail.sent)
	}
}

func TestSweepEnqueueFailureLeavesMarkerUnset(t *testing.T) {
	store := &fakeSweepStore{
		remindable: []models.Contract{ownedContract("c1", models.StatusPending, 500, "2025-06-17")},
		users:      map[string]models.User{"u1": {UID: "u1", Email: "creator@example.com"}},
	}
	mail := &fakeEnqueuer{err: errors.New("queue down")}

	if err := newTestSweeper(store, mail).RunOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(store.markedSent) != 0 {
		t.Fatalf("marked sent %v after enqueue failure", store.markedSent)
	}
}

func TestSweepOverdueQueryFailureAborts(t *testing.T) {
	store := &fakeSweepStore{overdueErr: errors.New("db down")}

	if err := newTestSweeper(store, &fakeEnqueuer{}).RunOnce(context.Background()); err == nil {
		t.Fatal("expected error when the overdue pass fails")
	}
}
