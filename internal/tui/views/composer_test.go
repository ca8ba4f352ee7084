package views

import "testing"

func TestComposerRecall(t *testing.T) {
	c := NewComposer()
	for _, line := range []string{"first", "second", "second"} {
		c.remember(line)
	}
	c.SetText("draft")

	steps := []struct {
		delta int
		want  string
	}{
		{-1, "second"},
		{-1, "first"},
		{-1, "first"},
		{1, "second"},
		{1, "draft"},
		{1, "draft"},
	}
	for i, s := range steps {
		c.recall(s.delta)
		if got := c.GetText(); got != s.want {
			t.Fatalf("step %d: text = %q, want %q", i, got, s.want)
		}
	}
	if len(c.history) != 2 {
		t.Errorf("history = %v, want repeats collapsed", c.history)
	}
}

func TestComposerHistoryLimit(t *testing.T) {
	c := NewComposer()
	for i := 0; i < historyLimit+10; i++ {
		c.remember(string(rune('a' + i%26)) + string(rune('0'+i/26)))
	}
	if len(c.history) != historyLimit {
		t.Errorf("kept %d lines, want %d", len(c.history), historyLimit)
	}
	if c.cursor != historyLimit {
		t.Errorf("cursor = %d, want %d", c.cursor, historyLimit)
	}
}
