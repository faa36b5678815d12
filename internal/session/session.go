// Package session holds the in-memory working copy of an order while a table is open.
//
// A Session is owned by exactly one caller and has no ties to persistence until the
// caller saves it to a table or checks it out.
package session

import (
	"github.com/shopspring/decimal"

	"github.com/example/restaurant-pos/internal/domain"
)

// Session accumulates order lines in insertion order, at most one line per product id.
type Session struct {
	lines []domain.OrderLine
}

func New() *Session {
	return &Session{}
}

// FromTable builds a session from the table's pending order.
func FromTable(t domain.Table) *Session {
	s := New()
	s.Load(t)
	return s
}

// Load replaces the session contents with the table's pending order, keeping stored order.
func (s *Session) Load(t domain.Table) {
	s.lines = domain.CloneLines(t.PendingOrder)
}

// Add merges p into an existing line with the same product id or appends a new line.
// The snapshot stored on a new line is a copy, later catalog edits do not reach it.
func (s *Session) Add(p domain.Product) {
	s.AddN(p, 1)
}

// AddN adds n units of p in one step, with the same merge rule as Add. n < 1 is ignored.
func (s *Session) AddN(p domain.Product, n int) {
	if n < 1 {
		return
	}
	for i := range s.lines {
		if s.lines[i].Product.ID == p.ID {
			s.lines[i].Quantity += n
			s.lines[i].LineTotal = s.lines[i].Product.Price.Mul(decimal.NewFromInt(int64(s.lines[i].Quantity)))
			return
		}
	}
	s.lines = append(s.lines, domain.OrderLine{
		Product:   p.Snapshot(),
		Quantity:  n,
		LineTotal: p.Price.Mul(decimal.NewFromInt(int64(n))),
	})
}

// Remove deletes the line at index. Out-of-range indexes are ignored.
func (s *Session) Remove(index int) bool {
	if index < 0 || index >= len(s.lines) {
		return false
	}
	s.lines = append(s.lines[:index], s.lines[index+1:]...)
	return true
}

// Total is the sum of all line totals, zero for an empty session.
func (s *Session) Total() decimal.Decimal {
	return domain.SumLines(s.lines)
}

// Lines returns a copy of the current lines.
func (s *Session) Lines() []domain.OrderLine {
	out := make([]domain.OrderLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *Session) Len() int { return len(s.lines) }

func (s *Session) Empty() bool { return len(s.lines) == 0 }

// ItemCount is the number of units across all lines.
func (s *Session) ItemCount() int {
	return domain.CountItems(s.lines)
}
