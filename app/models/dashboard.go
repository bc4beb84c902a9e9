package models

// UpcomingIncome is the dashboard projection of a contract expected to pay
// out on or after today.
type UpcomingIncome struct {
	ID          string  `json:"id"`
	Brand       string  `json:"brand"`
	Amount      float64 `json:"amount"`
	DueDate     string  `json:"dueDate"`
	ProjectName string  `json:"projectName,omitempty"`
}

// Risk reasons surfaced on at-risk payments.
const (
	RiskOverdue = "Payment overdue"
	RiskDueSoon = "Due soon"
)

// AtRiskPayment is a contract flagged as overdue or due within the risk
// window. Status is the effective display status, which may be overdue even
// when the stored status has not been swept yet.
type AtRiskPayment struct {
	ID          string         `json:"id"`
	Brand       string         `json:"brand"`
	Amount      float64        `json:"amount"`
	DueDate     string         `json:"dueDate"`
	Status      ContractStatus `json:"status"`
	ProjectName string         `json:"projectName,omitempty"`
	RiskReason  string         `json:"riskReason"`
}

// EarningsPoint is one month of settled income for the earnings chart.
type EarningsPoint struct {
	Month    string  `json:"month"` // "Jan", "Feb", ...
	Year     int     `json:"year"`
	Earnings float64 `json:"earnings"`
}

// DashboardSummary is the full aggregation result rendered by the dashboard.
type DashboardSummary struct {
	TotalPendingIncome  float64          `json:"totalPendingIncome"`
	UpcomingIncomeCount int              `json:"upcomingIncomeCount"`
	TotalContractsCount int              `json:"totalContractsCount"`
	AtRiskCount         int              `json:"atRiskPaymentsCount"`
	OverdueCount        int              `json:"totalOverdueCount"`
	PaidThisMonth       float64          `json:"paidThisMonthAmount"`
	UpcomingIncome      []UpcomingIncome `json:"upcomingIncomeList"`
	AtRiskPayments      []AtRiskPayment  `json:"atRiskPaymentsList"`
	Earnings            []EarningsPoint  `json:"earningsChartData"`
}
