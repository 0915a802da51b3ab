package services

import "time"

// BillStatus tells how close a pending bill is to its deadline.
type BillStatus int

const (
	BillUpcoming BillStatus = iota
	BillDueSoon
	BillOverdue
)

func (s BillStatus) String() string {
	switch s {
	case BillOverdue:
		return "overdue"
	case BillDueSoon:
		return "due soon"
	default:
		return "upcoming"
	}
}

// ClassifyBill compares a deadline with now. A deadline before now is overdue;
// one before now+window is due soon.
func ClassifyBill(deadline, now time.Time, window time.Duration) BillStatus {
	switch {
	case deadline.Before(now):
		return BillOverdue
	case deadline.Before(now.Add(window)):
		return BillDueSoon
	default:
		return BillUpcoming
	}
}
