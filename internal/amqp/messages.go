package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ledger event types published after a successful write.
const (
	EventCategoryCreated = "category.created"
	EventExpenseCreated  = "expense.created"
	EventBillCreated     = "bill.created"
	EventBudgetCreated   = "budget.created"
)

// LedgerEvent announces a row written to a user's ledger. It carries ids only;
// consumers read the row back from the store they share with the writer.
type LedgerEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	EntityID   int64     `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewLedgerEvent(eventType, userID string, entityID int64) *LedgerEvent {
	return &LedgerEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and checks that its id is a UUID.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(ev.ID); err != nil {
		return nil, fmt.Errorf("event id %q: %w", ev.ID, err)
	}
	return &ev, nil
}
