package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/limitd/limitd/service/ban"
	"github.com/limitd/limitd/service/rule"
)

// Policy defaults.
const (
	defaultBanCounterTTL = "10m"
	defaultBanLength     = "5m"
	defaultBanMaxLength  = "1d"
	defaultBanOffenses   = 10
)

type banConfig struct {
	Enabled    *bool  `json:"enabled"`
	Offenses   int64  `json:"offenses"`
	Length     string `json:"length"`
	MaxLength  string `json:"max_length"`
	CounterTTL string `json:"counter_ttl"`
	SiteWide   *bool  `json:"site_wide"`
}

type ruleConfig struct {
	Limit    int64  `json:"limit"`
	Period   string `json:"period"`
	Strategy string `json:"strategy"`
}

type policyConfig struct {
	Rules  map[string]ruleConfig `json:"rules"`
	Exempt []string              `json:"exempt"`
	Ban    banConfig             `json:"ban"`
}

// policy is the validated runtime form of the policy file.
type policy struct {
	Index       *rule.Index
	Ban         ban.Policy
	BansEnabled bool
	SiteWide    bool
}

// loadPolicy reads the policy file and translates it into compiled rules
// and a ban policy with defaults applied.
func loadPolicy(path string) (*policy, error) {
	config := policyConfig{
		Ban: banConfig{
			Offenses:   defaultBanOffenses,
			Length:     defaultBanLength,
			MaxLength:  defaultBanMaxLength,
			CounterTTL: defaultBanCounterTTL,
		},
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("policy decode: %s", err)
	}

	rules := rule.List{}

	for pattern, c := range config.Rules {
		period, err := parseDuration(c.Period)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %s", pattern, err)
		}

		rules = append(rules, &rule.Rule{
			Pattern:  pattern,
			Limit:    c.Limit,
			Period:   period,
			Strategy: rule.Strategy(c.Strategy),
		})
	}

	p := &policy{
		BansEnabled: true,
		SiteWide:    true,
		Ban: ban.Policy{
			Offenses: config.Ban.Offenses,
		},
	}

	if p.Index, err = rule.Compile(rules, config.Exempt); err != nil {
		return nil, err
	}

	if p.Ban.Length, err = parseDuration(config.Ban.Length); err != nil {
		return nil, fmt.Errorf("ban length: %s", err)
	}

	if p.Ban.MaxLength, err = parseDuration(config.Ban.MaxLength); err != nil {
		return nil, fmt.Errorf("ban max_length: %s", err)
	}

	if p.Ban.CounterTTL, err = parseDuration(config.Ban.CounterTTL); err != nil {
		return nil, fmt.Errorf("ban counter_ttl: %s", err)
	}

	if err := p.Ban.Validate(); err != nil {
		return nil, err
	}

	if config.Ban.Enabled != nil {
		p.BansEnabled = *config.Ban.Enabled
	}

	if config.Ban.SiteWide != nil {
		p.SiteWide = *config.Ban.SiteWide
	}

	return p, nil
}

// parseDuration extends time.ParseDuration with a day unit, so policies
// can express ban ceilings like "1d".
func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseUint(strings.TrimSuffix(s, "d"), 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}

		return time.Duration(days) * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}
