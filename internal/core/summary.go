package core

// CategoryStat aggregates paid transactions of one category.
type CategoryStat struct {
	CategoryID       ID      `json:"categoryId"`
	CategoryName     string  `json:"categoryName"`
	TotalAmount      float64 `json:"totalAmount"`
	TransactionCount int     `json:"transactionCount"`
	Percentage       float64 `json:"percentage"`
	Color            string  `json:"color"`
}

// SubcategoryStat aggregates paid transactions of one subcategory.
type SubcategoryStat struct {
	SubcategoryID    ID      `json:"subcategoryId"`
	SubcategoryName  string  `json:"subcategoryName"`
	CategoryName     string  `json:"categoryName"`
	TotalAmount      float64 `json:"totalAmount"`
	TransactionCount int     `json:"transactionCount"`
	Percentage       float64 `json:"percentage"`
}

// MonthlyStat is a compact summary for one calendar month.
type MonthlyStat struct {
	Month            string  `json:"month"` // 2006-01
	MonthName        string  `json:"monthName"`
	TotalExpenses    float64 `json:"totalExpenses"`
	TotalIncome      float64 `json:"totalIncome"`
	Balance          float64 `json:"balance"`
	TransactionCount int     `json:"transactionCount"`
}

type CreditCardStat struct {
	CardID          ID      `json:"cardId"`
	CardName        string  `json:"cardName"`
	TotalSpent      float64 `json:"totalSpent"`
	CurrentBill     float64 `json:"currentBill"`
	AvailableLimit  float64 `json:"availableLimit"`
	UsagePercentage float64 `json:"usagePercentage"`
}

type SummaryStat struct {
	TotalExpenses    float64 `json:"totalExpenses"`
	TotalIncome      float64 `json:"totalIncome"`
	Balance          float64 `json:"balance"`
	TransactionCount int     `json:"transactionCount"`
	ExpenseCount     int     `json:"expenseCount"`
	IncomeCount      int     `json:"incomeCount"`
}

type AccountSummary struct {
	TotalBalance float64 `json:"totalBalance"`
	AccountCount int     `json:"accountCount"`
}

// Dashboard bundles every statistic view for one period.
type Dashboard struct {
	PeriodStart       string            `json:"periodStart"`
	PeriodEnd         string            `json:"periodEnd"`
	Summary           SummaryStat       `json:"summary"`
	ExpenseCategories []CategoryStat    `json:"expenseCategories"`
	IncomeCategories  []CategoryStat    `json:"incomeCategories"`
	TopSubcategories  []SubcategoryStat `json:"topSubcategories"`
	Monthly           []MonthlyStat     `json:"monthly"`
	CreditCards       []CreditCardStat  `json:"creditCards"`
	Accounts          AccountSummary    `json:"accounts"`
	FilteredCount     int               `json:"filteredCount"`
}
