package app

import (
	"reflect"
	"testing"
	"time"

	"github.com/samouzou/verza/app/models"
)

var aggAsOf = time.Date(2025, time.June, 15, 13, 45, 0, 0, time.UTC)

func dateOffset(days int) string {
	return aggAsOf.AddDate(0, 0, days).Format(models.DueDateLayout)
}

func contract(id string, status models.ContractStatus, amount float64, due string) models.Contract {
	return models.Contract{ID: id, Brand: "Brand-" + id, Amount: amount, DueDate: due, Status: status}
}

func TestAggregatePendingDueToday(t *testing.T) {
	got := Aggregate([]models.Contract{
		contract("c1", models.StatusPending, 100, dateOffset(0)),
	}, aggAsOf)

	if got.TotalPendingIncome != 100 {
		t.Fatalf("TotalPendingIncome = %v, want 100", got.TotalPendingIncome)
	}
	if got.UpcomingIncomeCount != 1 || got.UpcomingIncome[0].ID != "c1" {
		t.Fatalf("upcoming = %+v, want [c1]", got.UpcomingIncome)
	}
	if got.AtRiskCount != 0 {
		t.Fatalf("contract due exactly today should not be at risk: %+v", got.AtRiskPayments)
	}
}

func TestAggregatePendingOverdueYesterday(t *testing.T) {
	got := Aggregate([]models.Contract{
		contract("c2", models.StatusPending, 200, dateOffset(-1)),
	}, aggAsOf)

	if got.UpcomingIncomeCount != 0 {
		t.Fatalf("overdue contract must not appear in upcoming: %+v", got.UpcomingIncome)
	}
	if got.AtRiskCount != 1 {
		t.Fatalf("AtRiskCount = %d, want 1", got.AtRiskCount)
	}
	risk := got.AtRiskPayments[0]
	if risk.Status != models.StatusOverdue || risk.RiskReason != models.RiskOverdue {
		t.Fatalf("risk = %+v, want effective overdue with reason %q", risk, models.RiskOverdue)
	}
	if got.OverdueCount != 1 {
		t.Fatalf("OverdueCount = %d, want 1", got.OverdueCount)
	}
}

func TestAggregateLongOverdueStatus(t *testing.T) {
	got := Aggregate([]models.Contract{
		contract("c3", models.StatusOverdue, 50, dateOffset(-30)),
	}, aggAsOf)

	if got.UpcomingIncomeCount != 0 || got.PaidThisMonth != 0 {
		t.Fatalf("overdue contract leaked into upcoming or paid buckets: %+v", got)
	}
	if got.AtRiskCount != 1 || got.AtRiskPayments[0].RiskReason != models.RiskOverdue {
		t.Fatalf("atRisk = %+v, want one entry with reason %q", got.AtRiskPayments, models.RiskOverdue)
	}
}

func TestAggregatePaidThisMonth(t *testing.T) {
	due := time.Date(aggAsOf.Year(), aggAsOf.Month(), 5, 0, 0, 0, 0, time.UTC).Format(models.DueDateLayout)
	got := Aggregate([]models.Contract{
		contract("c4", models.StatusPaid, 500, due),
	}, aggAsOf)

	if got.PaidThisMonth != 500 {
		t.Fatalf("PaidThisMonth = %v, want 500", got.PaidThisMonth)
	}
	if got.UpcomingIncomeCount != 0 || got.AtRiskCount != 0 {
		t.Fatalf("paid contract leaked into upcoming/atRisk: %+v", got)
	}
}

func TestAggregateDueSoonAppearsInBothLists(t *testing.T) {
	got := Aggregate([]models.Contract{
		contract("c5", models.StatusPending, 75, dateOffset(3)),
	}, aggAsOf)

	if got.TotalPendingIncome != 75 || got.UpcomingIncomeCount != 1 {
		t.Fatalf("due-soon contract missing from upcoming: %+v", got)
	}
	if got.AtRiskCount != 1 || got.AtRiskPayments[0].RiskReason != models.RiskDueSoon {
		t.Fatalf("atRisk = %+v, want one %q entry", got.AtRiskPayments, models.RiskDueSoon)
	}
	if got.OverdueCount != 0 {
		t.Fatalf("due-soon contract counted as overdue")
	}
}

func TestAggregateRiskWindowBoundary(t *testing.T) {
	got := Aggregate([]models.Contract{
		contract("in", models.StatusInvoiced, 10, dateOffset(6)),
		contract("out", models.StatusInvoiced, 20, dateOffset(7)),
	}, aggAsOf)

	if got.AtRiskCount != 1 || got.AtRiskPayments[0].ID != "in" {
		t.Fatalf("atRisk = %+v, want only the day-6 contract", got.AtRiskPayments)
	}
	// Both remain upcoming income regardless of the risk window.
	if got.UpcomingIncomeCount != 2 || got.TotalPendingIncome != 30 {
		t.Fatalf("upcoming = %+v total=%v, want both contracts / 30", got.UpcomingIncome, got.TotalPendingIncome)
	}
}

func TestAggregateSortsOverdueFirstThenByDueDate(t *testing.T) {
	got := Aggregate([]models.Contract{
		contract("soonB", models.StatusPending, 10, dateOffset(5)),
		contract("late", models.StatusOverdue, 10, dateOffset(-10)),
		contract("soonA", models.StatusPending, 10, dateOffset(2)),
		contract("lapsed", models.StatusInvoiced, 10, dateOffset(-2)),
	}, aggAsOf)

	var order []string
	for _, r := range got.AtRiskPayments {
		order = append(order, r.ID)
	}
	want := []string{"late", "lapsed", "soonA", "soonB"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("atRisk order = %v, want %v", order, want)
	}
}

func TestAggregateUpcomingSortedAscending(t *testing.T) {
	got := Aggregate([]models.Contract{
		contract("b", models.StatusPending, 10, dateOffset(30)),
		contract("a", models.StatusInvoiced, 10, dateOffset(1)),
		contract("c", models.StatusPending, 10, dateOffset(90)),
	}, aggAsOf)

	var order []string
	for _, u := range got.UpcomingIncome {
		order = append(order, u.ID)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("upcoming order = %v, want %v", order, want)
	}
}

func TestAggregatePaidAtOverridesDueDateProxy(t *testing.T) {
	paidLastMonth := aggAsOf.AddDate(0, -1, 0)
	dueThisMonth := contract("p1", models.StatusPaid, 300, dateOffset(-5))
	dueThisMonth.PaidAt = &paidLastMonth

	paidThisMonth := aggAsOf.AddDate(0, 0, -2)
	dueLastMonth := contract("p2", models.StatusPaid, 120, aggAsOf.AddDate(0, -1, 0).Format(models.DueDateLayout))
	dueLastMonth.PaidAt = &paidThisMonth

	got := Aggregate([]models.Contract{dueThisMonth, dueLastMonth}, aggAsOf)
	if got.PaidThisMonth != 120 {
		t.Fatalf("PaidThisMonth = %v, want 120 (payment timestamp wins over due date)", got.PaidThisMonth)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	contracts := []models.Contract{
		contract("c1", models.StatusPending, 100, dateOffset(0)),
		contract("c2", models.StatusOverdue, 200, dateOffset(-9)),
		contract("c3", models.StatusPaid, 500, dateOffset(-3)),
		contract("c4", models.StatusInvoiced, 75, dateOffset(4)),
	}

	first := Aggregate(contracts, aggAsOf)
	second := Aggregate(contracts, aggAsOf)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Aggregate is not idempotent:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

func TestAggregateMalformedDueDateSkipped(t *testing.T) {
	got := Aggregate([]models.Contract{
		contract("bad", models.StatusPending, 999, "June 1st"),
		contract("ok", models.StatusPending, 10, dateOffset(1)),
	}, aggAsOf)

	if got.TotalPendingIncome != 10 || got.UpcomingIncomeCount != 1 {
		t.Fatalf("malformed due date should be skipped: %+v", got)
	}
	if got.TotalContractsCount != 2 {
		t.Fatalf("TotalContractsCount = %d, want 2", got.TotalContractsCount)
	}
}

func TestEarningsSeriesBucketsTrailingMonths(t *testing.T) {
	thisMonth := contract("e1", models.StatusPaid, 100, dateOffset(-1))
	prev := contract("e2", models.StatusPaid, 40, aggAsOf.AddDate(0, -1, 0).Format(models.DueDateLayout))
	ancient := contract("e3", models.StatusPaid, 999, aggAsOf.AddDate(-1, 0, 0).Format(models.DueDateLayout))

	got := Aggregate([]models.Contract{thisMonth, prev, ancient}, aggAsOf)
	if len(got.Earnings) != earningsMonths {
		t.Fatalf("earnings length = %d, want %d", len(got.Earnings), earningsMonths)
	}
	last := got.Earnings[len(got.Earnings)-1]
	if last.Earnings != 100 {
		t.Fatalf("current month earnings = %v, want 100", last.Earnings)
	}
	prevPoint := got.Earnings[len(got.Earnings)-2]
	if prevPoint.Earnings != 40 {
		t.Fatalf("previous month earnings = %v, want 40", prevPoint.Earnings)
	}
	var total float64
	for _, p := range got.Earnings {
		total += p.Earnings
	}
	if total != 140 {
		t.Fatalf("earnings outside the window must be dropped, total = %v", total)
	}
}
