// Package stats derives dashboard statistics from raw transaction records.
// Every view is a pure function of its inputs; nothing here is cached.
package stats

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"finboard/internal/core"
	"finboard/internal/dates"
	"finboard/internal/period"
)

const (
	// UncategorizedID groups records that carry no category or subcategory.
	UncategorizedID core.ID = "uncategorized"

	DefaultUncategorizedName = "Uncategorized"
	DefaultColor             = "#94a3b8"

	// TopSubcategories bounds the subcategory view.
	TopSubcategories = 10
)

var hundred = decimal.NewFromInt(100)

// Engine computes the statistic views. The zero value is usable and works
// in UTC.
type Engine struct {
	Location          *time.Location
	UncategorizedName string
	DefaultColor      string
}

// NewEngine returns an engine bucketing months in loc.
func NewEngine(loc *time.Location) *Engine {
	return &Engine{
		Location:          loc,
		UncategorizedName: DefaultUncategorizedName,
		DefaultColor:      DefaultColor,
	}
}

func (e *Engine) loc() *time.Location {
	if e == nil || e.Location == nil {
		return time.UTC
	}
	return e.Location
}

func (e *Engine) uncategorizedName() string {
	if e == nil || e.UncategorizedName == "" {
		return DefaultUncategorizedName
	}
	return e.UncategorizedName
}

func (e *Engine) defaultColor() string {
	if e == nil || e.DefaultColor == "" {
		return DefaultColor
	}
	return e.DefaultColor
}

// Input is everything a dashboard is computed from. Expenses and Incomes are
// the unfiltered records as fetched.
type Input struct {
	Period        core.Period
	Expenses      []core.Transaction
	Incomes       []core.Transaction
	Categories    []core.Category
	Subcategories []core.Subcategory
	CreditCards   []core.CreditCard
	Accounts      []core.BankAccount
}

// Compute filters the records to the period once and derives every view.
// Monthly figures use the unfiltered records bucketed by due date.
func (e *Engine) Compute(in Input) core.Dashboard {
	all := make([]core.Transaction, 0, len(in.Expenses)+len(in.Incomes))
	all = append(all, in.Expenses...)
	all = append(all, in.Incomes...)

	filtered := period.FilterIn(all, in.Period, e.loc())

	return core.Dashboard{
		PeriodStart:       in.Period.Start.In(e.loc()).Format("2006-01-02"),
		PeriodEnd:         in.Period.End.In(e.loc()).Format("2006-01-02"),
		Summary:           e.SummaryStats(filtered),
		ExpenseCategories: e.CategoryStats(filtered, core.Expense, in.Categories),
		IncomeCategories:  e.CategoryStats(filtered, core.Income, in.Categories),
		TopSubcategories:  e.SubcategoryStats(filtered, core.Expense, in.Subcategories, in.Categories),
		Monthly:           e.MonthlyStats(all, in.Period),
		CreditCards:       e.CreditCardStats(in.CreditCards, filtered),
		Accounts:          AccountStats(in.Accounts),
		FilteredCount:     len(filtered),
	}
}

// group accumulates one category or subcategory bucket.
type group struct {
	id    core.ID
	total decimal.Decimal
	count int
}

// groupPaid sums positive, strictly paid records of type t by the id key
// returns. Groups come back in first-encounter order.
func groupPaid(records []core.Transaction, t core.TransactionType, key func(core.Transaction) core.ID) ([]*group, decimal.Decimal) {
	var (
		order []*group
		index = make(map[core.ID]*group)
		grand = decimal.Zero
	)
	for _, tx := range records {
		if tx.Type != t || !tx.PaidStrict() {
			continue
		}
		amount, ok := tx.Amount.Positive()
		if !ok {
			continue
		}
		id := key(tx)
		if id == "" {
			id = UncategorizedID
		}
		g, ok := index[id]
		if !ok {
			g = &group{id: id, total: decimal.Zero}
			index[id] = g
			order = append(order, g)
		}
		d := decimal.NewFromFloat(amount)
		g.total = g.total.Add(d)
		g.count++
		grand = grand.Add(d)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].total.GreaterThan(order[j].total)
	})
	return order, grand
}

func percentage(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).InexactFloat64()
}

// CategoryStats groups paid records of type t by category, largest first.
func (e *Engine) CategoryStats(records []core.Transaction, t core.TransactionType, categories []core.Category) []core.CategoryStat {
	byID := make(map[core.ID]core.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	groups, grand := groupPaid(records, t, func(tx core.Transaction) core.ID { return tx.CategoryID })
	out := make([]core.CategoryStat, 0, len(groups))
	for _, g := range groups {
		stat := core.CategoryStat{
			CategoryID:       g.id,
			CategoryName:     e.uncategorizedName(),
			TotalAmount:      g.total.InexactFloat64(),
			TransactionCount: g.count,
			Percentage:       percentage(g.total, grand),
			Color:            e.defaultColor(),
		}
		if c, ok := byID[g.id]; ok {
			if c.Name != "" {
				stat.CategoryName = c.Name
			}
			if c.Color != "" {
				stat.Color = c.Color
			}
		} else if g.id != UncategorizedID {
			stat.CategoryName = string(g.id)
		}
		out = append(out, stat)
	}
	return out
}

// SubcategoryStats groups paid records of type t by subcategory and keeps
// the ten largest.
func (e *Engine) SubcategoryStats(records []core.Transaction, t core.TransactionType, subcategories []core.Subcategory, categories []core.Category) []core.SubcategoryStat {
	subs := make(map[core.ID]core.Subcategory, len(subcategories))
	for _, s := range subcategories {
		subs[s.ID] = s
	}
	cats := make(map[core.ID]string, len(categories))
	for _, c := range categories {
		cats[c.ID] = c.Name
	}

	groups, grand := groupPaid(records, t, func(tx core.Transaction) core.ID { return tx.SubcategoryID })
	if len(groups) > TopSubcategories {
		groups = groups[:TopSubcategories]
	}

	out := make([]core.SubcategoryStat, 0, len(groups))
	for _, g := range groups {
		stat := core.SubcategoryStat{
			SubcategoryID:    g.id,
			SubcategoryName:  e.uncategorizedName(),
			TotalAmount:      g.total.InexactFloat64(),
			TransactionCount: g.count,
			Percentage:       percentage(g.total, grand),
		}
		if s, ok := subs[g.id]; ok {
			if s.Name != "" {
				stat.SubcategoryName = s.Name
			}
			stat.CategoryName = cats[s.CategoryID]
		} else if g.id != UncategorizedID {
			stat.SubcategoryName = string(g.id)
		}
		out = append(out, stat)
	}
	return out
}

// SummaryStats totals the records per type. Unlike the category views a
// record with no payment flag counts as paid.
func (e *Engine) SummaryStats(records []core.Transaction) core.SummaryStat {
	expenses, income := decimal.Zero, decimal.Zero
	var s core.SummaryStat
	for _, tx := range records {
		if !tx.PaidOrUnset() {
			continue
		}
		amount, ok := tx.Amount.Positive()
		if !ok {
			continue
		}
		switch tx.Type {
		case core.Expense:
			expenses = expenses.Add(decimal.NewFromFloat(amount))
			s.ExpenseCount++
		case core.Income:
			income = income.Add(decimal.NewFromFloat(amount))
			s.IncomeCount++
		}
	}
	s.TotalExpenses = expenses.InexactFloat64()
	s.TotalIncome = income.InexactFloat64()
	s.Balance = income.Sub(expenses).InexactFloat64()
	s.TransactionCount = s.ExpenseCount + s.IncomeCount
	return s
}

// MonthlyStats returns one entry per calendar month the period touches.
// Records are placed by due date alone; records without one are ignored.
func (e *Engine) MonthlyStats(records []core.Transaction, p core.Period) []core.MonthlyStat {
	loc := e.loc()
	months := period.Months(p, loc)

	type bucket struct {
		expenses, income decimal.Decimal
		count            int
	}
	buckets := make(map[string]*bucket, len(months))
	for _, m := range months {
		buckets[m.Format("2006-01")] = &bucket{expenses: decimal.Zero, income: decimal.Zero}
	}

	for _, tx := range records {
		if !tx.PaidStrict() {
			continue
		}
		amount, ok := tx.Amount.Positive()
		if !ok {
			continue
		}
		due, ok := dates.NormalizeIn(tx.DueDate, loc)
		if !ok {
			continue
		}
		b, ok := buckets[due.In(loc).Format("2006-01")]
		if !ok {
			continue
		}
		switch tx.Type {
		case core.Expense:
			b.expenses = b.expenses.Add(decimal.NewFromFloat(amount))
		case core.Income:
			b.income = b.income.Add(decimal.NewFromFloat(amount))
		default:
			continue
		}
		b.count++
	}

	out := make([]core.MonthlyStat, 0, len(months))
	for _, m := range months {
		b := buckets[m.Format("2006-01")]
		out = append(out, core.MonthlyStat{
			Month:            m.Format("2006-01"),
			MonthName:        m.Format("Jan 2006"),
			TotalExpenses:    b.expenses.InexactFloat64(),
			TotalIncome:      b.income.InexactFloat64(),
			Balance:          b.income.Sub(b.expenses).InexactFloat64(),
			TransactionCount: b.count,
		})
	}
	return out
}

// CreditCardStats reports usage for every card that has an id and a name.
// TotalSpent sums the positive expenses in records charged to the card.
func (e *Engine) CreditCardStats(cards []core.CreditCard, records []core.Transaction) []core.CreditCardStat {
	spent := make(map[core.ID]decimal.Decimal)
	for _, tx := range records {
		if tx.Type != core.Expense || tx.CreditCardID == "" {
			continue
		}
		if amount, ok := tx.Amount.Positive(); ok {
			spent[tx.CreditCardID] = spent[tx.CreditCardID].Add(decimal.NewFromFloat(amount))
		}
	}

	out := make([]core.CreditCardStat, 0, len(cards))
	for _, card := range cards {
		if card.ID == "" || card.Name == "" {
			continue
		}
		balance, balanceOK := card.CurrentBalance.Float()
		limit, limitOK := card.Limit.Float()

		stat := core.CreditCardStat{
			CardID:     card.ID,
			CardName:   card.Name,
			TotalSpent: spent[card.ID].InexactFloat64(),
		}
		if balanceOK {
			stat.CurrentBill = balance
		}
		if limitOK && limit > 0 && balanceOK {
			stat.UsagePercentage = percentage(decimal.NewFromFloat(balance), decimal.NewFromFloat(limit))
		}
		if avail, ok := card.AvailableLimit.Float(); ok {
			stat.AvailableLimit = avail
		} else if limitOK {
			remaining := decimal.NewFromFloat(limit).Sub(decimal.NewFromFloat(stat.CurrentBill))
			stat.AvailableLimit = decimal.Max(remaining, decimal.Zero).InexactFloat64()
		}
		out = append(out, stat)
	}
	return out
}

// AccountStats sums the valid balances of the bank accounts.
func AccountStats(accounts []core.BankAccount) core.AccountSummary {
	total := decimal.Zero
	for _, a := range accounts {
		if v, ok := a.Balance.Float(); ok {
			total = total.Add(decimal.NewFromFloat(v))
		}
	}
	return core.AccountSummary{TotalBalance: total.InexactFloat64(), AccountCount: len(accounts)}
}
