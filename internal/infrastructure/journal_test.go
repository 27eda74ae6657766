package infrastructure

import (
	"path/filepath"
	"testing"
)

func TestJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.jsonl")
	journal, err := NewJournal(path)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	defer journal.Close()

	payload := []byte(`{"sensor_id":"abc","value":6.1}`)
	if err := journal.Append("farm/dev-01/readings", payload, "sensor not found"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := journal.Append("farm/dev-02/readings", payload, "db down"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := journal.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Topic != "farm/dev-01/readings" || string(entries[0].Payload) != string(payload) {
		t.Errorf("first entry = %+v", entries[0])
	}
}

func TestJournalRewriteDropsExhaustedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.jsonl")
	journal, err := NewJournal(path)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	defer journal.Close()

	if err := journal.Append("farm/dev-01/readings", []byte(`{}`), "x"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	entries, err := journal.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	entries[0].Retries = 5 // at the retry cap
	if err := journal.Rewrite(entries); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	remaining, err := journal.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("remaining = %d, want 0", len(remaining))
	}
}

func TestTopicHelpers(t *testing.T) {
	tests := []struct {
		topic    string
		wantType string
		wantUID  string
	}{
		{"farm/dev-01/readings", "readings", "dev-01"},
		{"farm/dev-01/status", "status", "dev-01"},
		{"farm/dev-01", "dev-01", ""},
		{"garbage", "unknown", ""},
		{"farm/dev-01/readings/extra", "extra", ""},
	}

	for _, tt := range tests {
		if got := MessageTypeFromTopic(tt.topic); got != tt.wantType {
			t.Errorf("MessageTypeFromTopic(%q) = %q, want %q", tt.topic, got, tt.wantType)
		}
		if got := DeviceUIDFromTopic(tt.topic); got != tt.wantUID {
			t.Errorf("DeviceUIDFromTopic(%q) = %q, want %q", tt.topic, got, tt.wantUID)
		}
	}
}
