package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLen        = 100
	MaxDescriptionLen = 200
)

type (
	// Category groups expenses and budgets. Names are unique per user.
	Category struct {
		ID        int64
		UserID    string
		Name      string
		CreatedAt time.Time
	}

	Expense struct {
		ID          int64
		CategoryID  int64
		UserID      string
		Amount      Money
		Date        time.Time
		Description string
	}

	// Bill is a pending obligation, not a paid expense.
	Bill struct {
		ID       int64
		UserID   string
		Name     string
		Amount   Money
		Deadline time.Time
	}

	Budget struct {
		ID         int64
		CategoryID int64
		UserID     string
		Amount     Money
	}
)

// NormalizeName trims a category or bill name and checks it is usable.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUser
	}
	return nil
}

// storableDate reports whether t round-trips through TimestampLayout.
func storableDate(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	y := t.UTC().Year()
	return y >= 1 && y <= 9999
}

func (c Category) Validate() error {
	if err := validateUser(c.UserID); err != nil {
		return err
	}
	_, err := NormalizeName(c.Name)
	return err
}

func (e Expense) Validate() error {
	if err := validateUser(e.UserID); err != nil {
		return err
	}
	if e.CategoryID <= 0 {
		return ErrUnknownCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !storableDate(e.Date) {
		return ErrInvalidDate
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

func (b Bill) Validate() error {
	if err := validateUser(b.UserID); err != nil {
		return err
	}
	if _, err := NormalizeName(b.Name); err != nil {
		return err
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !storableDate(b.Deadline) {
		return ErrInvalidDate
	}
	return nil
}

// DueBefore reports whether the bill deadline falls before t.
func (b Bill) DueBefore(t time.Time) bool {
	return b.Deadline.Before(t)
}

func (b Budget) Validate() error {
	if err := validateUser(b.UserID); err != nil {
		return err
	}
	if b.CategoryID <= 0 {
		return ErrUnknownCategory
	}
	return b.Amount.Validate()
}
