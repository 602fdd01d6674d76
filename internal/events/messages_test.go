package events

import (
	"testing"
	"time"
)

func TestLedgerChangedMessageJSONRoundTrip(t *testing.T) {
	msg := NewLedgerChangedMessage("Current", 7)

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	decoded, err := LedgerChangedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}

	if decoded.Account != "Current" {
		t.Errorf("Account = %q, want Current", decoded.Account)
	}
	if decoded.Revision != 7 {
		t.Errorf("Revision = %d, want 7", decoded.Revision)
	}
	if decoded.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
	if time.Since(decoded.Timestamp) > time.Minute {
		t.Errorf("Timestamp = %v, want recent", decoded.Timestamp)
	}
}

func TestLedgerChangedMessageFromJSONInvalid(t *testing.T) {
	if _, err := LedgerChangedMessageFromJSON([]byte("not json")); err == nil {
		t.Error("FromJSON() error = nil, want error")
	}
}
