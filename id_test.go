package recall

import "testing"

func TestNewID(t *testing.T) {
	id1 := NewID()
	id2 := NewID()
	if len(id1) != 36 {
		t.Errorf("expected 36 chars (uuid), got %d: %s", len(id1), id1)
	}
	if id1 == id2 {
		t.Error("two IDs should be unique")
	}
}

func TestNowUTC(t *testing.T) {
	if Now().Location().String() != "UTC" {
		t.Error("Now() must return a UTC timestamp")
	}
}
