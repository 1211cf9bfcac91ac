package titles

import "testing"

func TestBoard(t *testing.T) {
	b := NewBoard()

	if _, ok := b.CurrentTitle("st-1"); ok {
		t.Error("empty board reported a title")
	}

	b.Publish("st-1", "Song A")
	if title, ok := b.CurrentTitle("st-1"); !ok || title != "Song A" {
		t.Errorf("CurrentTitle = (%q, %v), want (Song A, true)", title, ok)
	}

	b.Publish("st-1", "Song B")
	if title, _ := b.CurrentTitle("st-1"); title != "Song B" {
		t.Errorf("CurrentTitle after republish = %q, want Song B", title)
	}

	b.Publish("st-2", "Other")
	snap := b.Snapshot()
	if len(snap) != 2 || snap["st-1"] != "Song B" || snap["st-2"] != "Other" {
		t.Errorf("Snapshot = %v", snap)
	}

	b.Forget("st-1")
	if _, ok := b.CurrentTitle("st-1"); ok {
		t.Error("title survived Forget")
	}
	if title, ok := b.CurrentTitle("st-2"); !ok || title != "Other" {
		t.Errorf("unrelated station affected by Forget: (%q, %v)", title, ok)
	}
}
