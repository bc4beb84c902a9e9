package app

import (
	"sort"
	"time"

	"github.com/samouzou/verza/app/models"
)

// earningsMonths is how many trailing months the dashboard chart covers.
const earningsMonths = 6

// riskWindowDays is the look-ahead for the "due soon" bucket.
const riskWindowDays = 7

// midnightOf strips the time component of t in its own location and returns
// that calendar day anchored at midnight UTC, matching how contract due
// dates are parsed. Comparing at day granularity avoids double counting
// around timezone boundaries.
func midnightOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isReceivable(s models.ContractStatus) bool {
	return s == models.StatusPending || s == models.StatusInvoiced
}

// paymentDay returns the calendar day a paid contract settled on: the
// recorded payment timestamp when present, otherwise the due date as a
// documented proxy.
func paymentDay(c models.Contract) time.Time {
	if c.PaidAt != nil {
		return midnightOf(*c.PaidAt)
	}
	return c.DueDay()
}

// Aggregate partitions a user's contracts into the dashboard buckets as of
// the given reference date. It is a pure function: no I/O, no mutation of
// its input, and identical inputs always produce identical output.
func Aggregate(contracts []models.Contract, asOf time.Time) models.DashboardSummary {
	today := midnightOf(asOf)
	dueSoonEnd := today.AddDate(0, 0, riskWindowDays)

	summary := models.DashboardSummary{
		TotalContractsCount: len(contracts),
		UpcomingIncome:      []models.UpcomingIncome{},
		AtRiskPayments:      []models.AtRiskPayment{},
	}

	for _, c := range contracts {
		due := c.DueDay()
		if due.IsZero() {
			continue // malformed due date, nothing to bucket
		}

		if isReceivable(c.Status) && !due.Before(today) {
			summary.UpcomingIncome = append(summary.UpcomingIncome, models.UpcomingIncome{
				ID:          c.ID,
				Brand:       c.Brand,
				Amount:      c.Amount,
				DueDate:     c.DueDate,
				ProjectName: c.ProjectName,
			})
			summary.TotalPendingIncome += c.Amount
		}

		if risk, ok := classifyRisk(c, due, today, dueSoonEnd); ok {
			summary.AtRiskPayments = append(summary.AtRiskPayments, risk)
			if risk.RiskReason == models.RiskOverdue {
				summary.OverdueCount++
			}
		}

		if c.Status == models.StatusPaid {
			day := paymentDay(c)
			if day.Year() == today.Year() && day.Month() == today.Month() {
				summary.PaidThisMonth += c.Amount
			}
		}
	}

	sort.SliceStable(summary.UpcomingIncome, func(i, j int) bool {
		return summary.UpcomingIncome[i].DueDate < summary.UpcomingIncome[j].DueDate
	})
	sort.SliceStable(summary.AtRiskPayments, func(i, j int) bool {
		a, b := summary.AtRiskPayments[i], summary.AtRiskPayments[j]
		if (a.RiskReason == models.RiskOverdue) != (b.RiskReason == models.RiskOverdue) {
			return a.RiskReason == models.RiskOverdue
		}
		return a.DueDate < b.DueDate
	})

	summary.UpcomingIncomeCount = len(summary.UpcomingIncome)
	summary.AtRiskCount = len(summary.AtRiskPayments)
	summary.Earnings = earningsSeries(contracts, today)

	return summary
}

// classifyRisk decides whether a contract belongs in the at-risk bucket.
// Overdue status always qualifies. A receivable contract past its due date
// is displayed as overdue even though the sweep has not reclassified it yet.
// A receivable contract due strictly after today but before the end of the
// risk window is "due soon"; one due exactly today is upcoming, not at risk.
func classifyRisk(c models.Contract, due, today, dueSoonEnd time.Time) (models.AtRiskPayment, bool) {
	risk := models.AtRiskPayment{
		ID:          c.ID,
		Brand:       c.Brand,
		Amount:      c.Amount,
		DueDate:     c.DueDate,
		Status:      c.Status,
		ProjectName: c.ProjectName,
	}

	switch {
	case c.Status == models.StatusOverdue:
		risk.RiskReason = models.RiskOverdue
	case isReceivable(c.Status) && due.Before(today):
		risk.Status = models.StatusOverdue
		risk.RiskReason = models.RiskOverdue
	case isReceivable(c.Status) && due.After(today) && due.Before(dueSoonEnd):
		risk.RiskReason = models.RiskDueSoon
	default:
		return models.AtRiskPayment{}, false
	}
	return risk, true
}

// earningsSeries sums settled income per month for the trailing chart
// window, oldest month first.
func earningsSeries(contracts []models.Contract, today time.Time) []models.EarningsPoint {
	points := make([]models.EarningsPoint, earningsMonths)
	index := make(map[string]int, earningsMonths)
	// Anchor on the first of the month so month arithmetic never skips a
	// short month.
	firstOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < earningsMonths; i++ {
		m := firstOfMonth.AddDate(0, i-earningsMonths+1, 0)
		key := m.Format("2006-01")
		index[key] = i
		points[i] = models.EarningsPoint{Month: m.Format("Jan"), Year: m.Year()}
	}

	for _, c := range contracts {
		if c.Status != models.StatusPaid {
			continue
		}
		day := paymentDay(c)
		if day.IsZero() {
			continue
		}
		if i, ok := index[day.Format("2006-01")]; ok {
			points[i].Earnings += c.Amount
		}
	}
	return points
}
