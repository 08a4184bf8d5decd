package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeKind names the local write a message announces.
type ChangeKind string

const (
	KindCreated ChangeKind = "expense.created"
	KindUpdated ChangeKind = "expense.updated"
	KindDeleted ChangeKind = "expense.deleted"
)

func (k ChangeKind) Valid() bool {
	switch k {
	case KindCreated, KindUpdated, KindDeleted:
		return true
	}
	return false
}

// ExpenseChangeMessage announces a local write to an expense. It carries only
// the id; the worker reads the current row from the database.
type ExpenseChangeMessage struct {
	ID        int64      `json:"id"`
	Kind      ChangeKind `json:"kind"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewExpenseChangeMessage(id int64, kind ChangeKind) *ExpenseChangeMessage {
	return &ExpenseChangeMessage{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangeMessageFromJSON decodes and checks a message body.
func ExpenseChangeMessageFromJSON(data []byte) (*ExpenseChangeMessage, error) {
	var msg ExpenseChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID <= 0 {
		return nil, fmt.Errorf("invalid expense id %d", msg.ID)
	}
	if !msg.Kind.Valid() {
		return nil, fmt.Errorf("unknown change kind %q", msg.Kind)
	}
	return &msg, nil
}
