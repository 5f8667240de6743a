package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testPolicy = `{
	"rules": {
		"/api/*": {"limit": 10, "period": "1m", "strategy": "moving"},
		"/api/auth/*": {"limit": 3, "period": "1m", "strategy": "fixed"}
	},
	"exempt": ["/health", "/static/*"],
	"ban": {
		"offenses": 5,
		"length": "1m",
		"max_length": "1d",
		"site_wide": false
	}
}`

func TestLoadPolicy(t *testing.T) {
	p, err := loadPolicy(writePolicy(t, testPolicy))
	if err != nil {
		t.Fatal(err)
	}

	if have, want := p.Index.Len(), 2; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := p.BansEnabled, true; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := p.SiteWide, false; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := p.Ban.Offenses, int64(5); have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := p.Ban.MaxLength, 24*time.Hour; have != want {
		t.Errorf("have %v, want %v", have, want)
	}

	if have, want := p.Ban.CounterTTL, 10*time.Minute; have != want {
		t.Errorf("have %v, want %v", have, want)
	}
}

func TestLoadPolicyInvalidRule(t *testing.T) {
	_, err := loadPolicy(writePolicy(t, `{
		"rules": {
			"/api/*": {"limit": 0, "period": "1m", "strategy": "fixed"}
		}
	}`))
	if err == nil {
		t.Error("want rule validation error")
	}
}

func TestLoadPolicyInvalidStrategy(t *testing.T) {
	_, err := loadPolicy(writePolicy(t, `{
		"rules": {
			"/api/*": {"limit": 10, "period": "1m", "strategy": "sliding"}
		}
	}`))
	if err == nil {
		t.Error("want rule validation error")
	}
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30s": 30 * time.Second,
		"5m":  5 * time.Minute,
		"2h":  2 * time.Hour,
		"1d":  24 * time.Hour,
		"7d":  7 * 24 * time.Hour,
	}

	for input, want := range cases {
		have, err := parseDuration(input)
		if err != nil {
			t.Fatal(err)
		}

		if have != want {
			t.Errorf("%s: have %v, want %v", input, have, want)
		}
	}

	for _, input := range []string{"", "d", "day", "10x"} {
		if _, err := parseDuration(input); err == nil {
			t.Errorf("%s: want error", input)
		}
	}
}

func writePolicy(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "policy.json")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}
