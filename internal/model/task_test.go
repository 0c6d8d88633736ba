package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestFormatInstantNormalizesToUTC(t *testing.T) {
	// 02:30 on a US DST transition day, expressed in a zone with offset.
	local := time.Date(2026, 3, 8, 2, 30, 0, 0, time.FixedZone("EST", -5*3600))
	got := FormatInstant(local)
	want := "2026-03-08T07:30:00.000Z"
	if got != want {
		t.Errorf("FormatInstant = %q, want %q", got, want)
	}
}

func TestInstantRoundTrip(t *testing.T) {
	cases := []string{
		"2026-01-01T00:00:00.000Z",
		"2026-03-08T07:30:00.000Z",
		"2026-10-25T01:59:59.999Z",
	}
	for _, s := range cases {
		parsed, err := ParseInstant(s)
		if err != nil {
			t.Fatalf("ParseInstant(%q): %v", s, err)
		}
		if got := FormatInstant(parsed); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func TestParseInstantAcceptsRFC3339(t *testing.T) {
	parsed, err := ParseInstant("2026-09-01T14:30:00+02:00")
	if err != nil {
		t.Fatalf("ParseInstant: %v", err)
	}
	if got := FormatInstant(parsed); got != "2026-09-01T12:30:00.000Z" {
		t.Errorf("got %q, want UTC normalized instant", got)
	}
}

func TestParseInstantRejectsGarbage(t *testing.T) {
	if _, err := ParseInstant("next tuesday"); err == nil {
		t.Error("expected error for unparseable input")
	}
}

func TestInstantOrderingIsLexicographic(t *testing.T) {
	earlier := FormatInstant(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	later := FormatInstant(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	if !(earlier < later) {
		t.Errorf("string order disagrees with time order: %q vs %q", earlier, later)
	}
}

func TestTaskJSONOmitsSyncFlag(t *testing.T) {
	desc := "d"
	raw, err := json.Marshal(Task{
		ID:          "t1",
		OwnerID:     "alice",
		Title:       "x",
		Description: &desc,
		Synced:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "Synced") || strings.Contains(string(raw), "synced") {
		t.Errorf("sync bookkeeping leaked onto the wire: %s", raw)
	}
}

func TestTaskJSONOmitsEmptyOptionalFields(t *testing.T) {
	raw, err := json.Marshal(Task{ID: "t1", OwnerID: "alice", Title: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "description") || strings.Contains(string(raw), "dueDate") {
		t.Errorf("nil optional fields serialized: %s", raw)
	}
}
