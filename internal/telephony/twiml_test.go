package telephony

import (
	"strings"
	"testing"
)

func TestRenderPlayTwiML(t *testing.T) {
	out, err := RenderPlayTwiML("https://cdn.example.com/a.mp3?x=1&y=2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("expected xml header: %s", out)
	}
	if !strings.Contains(out, "<Play>https://cdn.example.com/a.mp3?x=1&amp;y=2</Play>") {
		t.Fatalf("expected escaped play verb: %s", out)
	}
	if _, err := RenderPlayTwiML(" "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestRenderSayTwiMLDefaults(t *testing.T) {
	out, err := RenderSayTwiML("Hello <there>", "", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, `<Say voice="alice" language="en-US">Hello &lt;there&gt;</Say>`) {
		t.Fatalf("unexpected say verb: %s", out)
	}
}
