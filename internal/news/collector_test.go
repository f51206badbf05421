package news

import (
	"strings"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	now := time.Now().UTC()
	raw := []rawHeadline{
		{Title: "  Bitcoin breaks above resistance as funding flips positive  ", URL: "https://example.com/a"},
		{Title: "Bitcoin breaks above resistance as funding flips positive", URL: "https://example.com/dup"},
		{Title: "short", URL: "https://example.com/b"},
		{Title: "", URL: "https://example.com/c"},
		{Title: "Ethereum validators queue at yearly high", URL: "https://example.com/d"},
	}

	items := Normalize(raw, "https://example.com", 10, now)

	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if strings.HasPrefix(items[0].Title, " ") {
		t.Error("title not trimmed")
	}
	if items[0].Source != "https://example.com" {
		t.Errorf("source = %q", items[0].Source)
	}
	if !items[0].FetchedAt.Equal(now) {
		t.Error("fetched_at not set")
	}
}

func TestNormalizeCapsItems(t *testing.T) {
	raw := make([]rawHeadline, 20)
	for i := range raw {
		raw[i] = rawHeadline{Title: strings.Repeat("x", 11) + string(rune('a'+i))}
	}

	items := Normalize(raw, "src", 5, time.Now())
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
}

func TestHeadlinesReturnsCopy(t *testing.T) {
	c := NewCollector(Config{}, nil)
	c.items = Normalize([]rawHeadline{
		{Title: "Solana outage postmortem published by validators"},
	}, "src", 10, time.Now())

	got := c.Headlines()
	if len(got) != 1 {
		t.Fatalf("headlines = %d, want 1", len(got))
	}
	got[0].Title = "mutated"
	if c.items[0].Title == "mutated" {
		t.Error("Headlines leaked the internal slice")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Interval != 10*time.Minute {
		t.Errorf("interval = %v", cfg.Interval)
	}
	if cfg.MaxItems != 10 {
		t.Errorf("max items = %d", cfg.MaxItems)
	}
	if cfg.Selector == "" {
		t.Error("selector empty")
	}
}
