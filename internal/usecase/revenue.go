package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/domain"
)

// Report — сводка для экрана отчётов.
type Report struct {
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TodayRevenue      decimal.Decimal `json:"today_revenue"`
	MonthRevenue      decimal.Decimal `json:"month_revenue"`
	OrderCount        int             `json:"order_count"`
	TodayOrderCount   int             `json:"today_order_count"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
}

// Revenue считает выручку по журналу. Каждый вызов обращается к хранилищу заново.
// Границы дня и месяца берутся из Now в часовом поясе Location.
type Revenue struct {
	Ledger   domain.OrderLedger
	Now      func() time.Time
	Location *time.Location
}

func (r Revenue) now() time.Time {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	loc := r.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc)
}

// TodayWindow — [начало текущего дня, начало следующего дня).
func (r Revenue) TodayWindow() domain.Window {
	return todayWindow(r.now())
}

// MonthWindow — [начало текущего месяца, сейчас).
func (r Revenue) MonthWindow() domain.Window {
	return monthWindow(r.now())
}

func todayWindow(now time.Time) domain.Window {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return domain.Window{From: start, To: start.AddDate(0, 0, 1)}
}

func monthWindow(now time.Time) domain.Window {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return domain.Window{From: start, To: now}
}

func (r Revenue) revenue(ctx context.Context, w domain.Window) (decimal.Decimal, error) {
	s, err := r.Ledger.Summarize(ctx, w)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Revenue, nil
}

func (r Revenue) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	return r.revenue(ctx, domain.Window{})
}

// RevenueInPeriod — сумма за [from, to); нулевая граница не ограничивает.
func (r Revenue) RevenueInPeriod(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return r.revenue(ctx, domain.Window{From: from, To: to})
}

func (r Revenue) TodayRevenue(ctx context.Context) (decimal.Decimal, error) {
	return r.revenue(ctx, r.TodayWindow())
}

func (r Revenue) MonthRevenue(ctx context.Context) (decimal.Decimal, error) {
	return r.revenue(ctx, r.MonthWindow())
}

func (r Revenue) OrderCount(ctx context.Context, w domain.Window) (int, error) {
	s, err := r.Ledger.Summarize(ctx, w)
	if err != nil {
		return 0, err
	}
	return s.Count, nil
}

func (r Revenue) TodayOrderCount(ctx context.Context) (int, error) {
	return r.OrderCount(ctx, r.TodayWindow())
}

// AverageOrderValue — общая выручка на заказ; 0 при пустом журнале.
func (r Revenue) AverageOrderValue(ctx context.Context) (decimal.Decimal, error) {
	s, err := r.Ledger.Summarize(ctx, domain.Window{})
	if err != nil {
		return decimal.Zero, err
	}
	return average(s), nil
}

func average(s domain.Summary) decimal.Decimal {
	if s.Count == 0 {
		return decimal.Zero
	}
	return s.Revenue.Div(decimal.NewFromInt(int64(s.Count)))
}

// Summary собирает все показатели отчёта. Оба окна строятся от одного показания часов.
func (r Revenue) Summary(ctx context.Context) (Report, error) {
	now := r.now()
	all, err := r.Ledger.Summarize(ctx, domain.Window{})
	if err != nil {
		return Report{}, err
	}
	today, err := r.Ledger.Summarize(ctx, todayWindow(now))
	if err != nil {
		return Report{}, err
	}
	month, err := r.Ledger.Summarize(ctx, monthWindow(now))
	if err != nil {
		return Report{}, err
	}
	return Report{
		TotalRevenue:      all.Revenue,
		TodayRevenue:      today.Revenue,
		MonthRevenue:      month.Revenue,
		OrderCount:        all.Count,
		TodayOrderCount:   today.Count,
		AverageOrderValue: average(all),
	}, nil
}
