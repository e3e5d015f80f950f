package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChangeOp names what happened to the transaction table.
type ChangeOp string

const (
	OpInserted ChangeOp = "inserted"
	OpDeleted  ChangeOp = "deleted"
	OpCleared  ChangeOp = "cleared"
)

// ChangeEvent announces a committed change to the transaction table.
// Consumers re-read the store; the event carries no row data.
type ChangeEvent struct {
	MessageID     string    `json:"message_id"`
	Op            ChangeOp  `json:"op"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewChangeEvent(op ChangeOp, transactionID int64) *ChangeEvent {
	return &ChangeEvent{
		MessageID:     uuid.NewString(),
		Op:            op,
		TransactionID: transactionID,
		Timestamp:     time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
