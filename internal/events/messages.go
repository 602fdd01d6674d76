package events

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage notifies consumers that an account mutated. It
// carries only the account name and its revision counter; consumers that
// need the state itself load the latest snapshot.
type LedgerChangedMessage struct {
	Account   string    `json:"account"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(account string, revision uint64) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Account:   account,
		Revision:  revision,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
