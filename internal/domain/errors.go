package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Общие доменные ошибки. Типизированные ошибки ниже сопоставляются с ними через errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrConnectivity = errors.New("store unreachable")
	ErrValidation   = errors.New("invalid data")
)

// NotFoundError — запрошенный стол или продукт не существует.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError — нарушение правила предметной области, например удаление занятого стола.
type ConflictError struct {
	Entity string
	Key    string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.Key, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ConnectivityError — хранилище недоступно при старте. Фатально для запуска.
type ConnectivityError struct {
	Backend string
	Hint    string
	Err     error
}

func (e *ConnectivityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s unreachable", e.Backend)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	return b.String()
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }

// ValidationError — некорректные входные данные.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func TableNotFound(number int) error {
	return &NotFoundError{Entity: "table", Key: fmt.Sprint(number)}
}

func ProductNotFound(id string) error {
	return &NotFoundError{Entity: "product", Key: id}
}

// OccupiedTableError is returned when an occupied table is deleted.
func OccupiedTableError(number int) error {
	return &ConflictError{Entity: "table", Key: fmt.Sprint(number), Reason: "occupied table cannot be deleted"}
}

// TableNotOccupied is returned when checkout is attempted on an empty table.
func TableNotOccupied(number int) error {
	return &ConflictError{Entity: "table", Key: fmt.Sprint(number), Reason: "table has no open order"}
}

// CheckoutReplayed is returned when an earlier interrupted checkout of the table was
// completed instead of the requested one.
func CheckoutReplayed(number int, orderID string) error {
	return &ConflictError{Entity: "table", Key: fmt.Sprint(number), Reason: "earlier checkout " + orderID + " completed instead"}
}
