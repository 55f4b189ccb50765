package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds carried on the ledger event queue.
const (
	EventTransactionPosted    = "transaction_posted"
	EventFixedExpenseExecuted = "fixed_expense_executed"
)

// LedgerEventMessage is a lightweight notification that the ledger changed.
// It carries identifiers only; consumers fetch the full rows from the
// database.
type LedgerEventMessage struct {
	Kind           string    `json:"kind"`
	TxGUID         string    `json:"tx_guid"`
	FixedExpenseID int64     `json:"fixed_expense_id,omitempty"`
	PostDate       string    `json:"post_date"` // YYYY-MM-DD
	Timestamp      time.Time `json:"timestamp"`
}

// NewTransactionPostedMessage creates an event for a freshly posted voucher.
func NewTransactionPostedMessage(txGUID, postDate string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:      EventTransactionPosted,
		TxGUID:    txGUID,
		PostDate:  postDate,
		Timestamp: time.Now(),
	}
}

// NewFixedExpenseExecutedMessage creates an event for an executed fixed
// expense and the voucher it produced.
func NewFixedExpenseExecutedMessage(fixedExpenseID int64, txGUID, postDate string) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:           EventFixedExpenseExecuted,
		TxGUID:         txGUID,
		FixedExpenseID: fixedExpenseID,
		PostDate:       postDate,
		Timestamp:      time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
