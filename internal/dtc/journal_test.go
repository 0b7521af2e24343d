package dtc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/canlink/ecubridge/internal/obd"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRecordFirstSeen(t *testing.T) {
	j := openTestJournal(t)
	code := obd.DTC{High: 0x01, Low: 0x33}
	now := time.Now()

	isNew, err := j.Record(code, now)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !isNew {
		t.Error("first Record reported not new")
	}

	isNew, err = j.Record(code, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Record failed: %v", err)
	}
	if isNew {
		t.Error("second Record reported new")
	}

	hist, err := j.History()
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("History has %d entries, want 1", len(hist))
	}
	e := hist[0]
	if e.Code != "P0133" || e.Count != 2 {
		t.Errorf("entry = %+v, want code P0133 count 2", e)
	}
	if !e.FirstSeen.Equal(time.Unix(0, now.UnixNano())) {
		t.Errorf("FirstSeen = %v, want %v", e.FirstSeen, now)
	}
}

func TestJournalClearAll(t *testing.T) {
	j := openTestJournal(t)
	if _, err := j.Record(obd.DTC{High: 0x04, Low: 0x20}, time.Now()); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := j.ClearAll(); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	hist, err := j.History()
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 0 {
		t.Errorf("History after ClearAll = %v, want empty", hist)
	}
}
