package connection_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hookline/hookline/connection"
)

func TestRuleSetDecode(t *testing.T) {
	raw := `[
		{"type":"filter","config":{"event_types":["charge.succeeded","charge.failed"]}},
		{"type":"delay","config":{"seconds":60}}
	]`

	var rs connection.RuleSet
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(rs) != 2 {
		t.Fatalf("len = %d, want 2", len(rs))
	}

	f, ok := rs[0].(connection.FilterRule)
	if !ok {
		t.Fatalf("rs[0] = %T, want FilterRule", rs[0])
	}
	if len(f.EventTypes) != 2 {
		t.Errorf("event types = %v", f.EventTypes)
	}

	d, ok := rs[1].(connection.DelayRule)
	if !ok {
		t.Fatalf("rs[1] = %T, want DelayRule", rs[1])
	}
	if d.Seconds != 60 {
		t.Errorf("seconds = %d, want 60", d.Seconds)
	}
}

func TestRuleSetDecodeRejectsUnknownType(t *testing.T) {
	raw := `[{"type":"transform","config":{}}]`

	var rs connection.RuleSet
	err := json.Unmarshal([]byte(raw), &rs)

	var unknown *connection.UnknownRuleTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownRuleTypeError", err)
	}
	if unknown.Type != "transform" {
		t.Errorf("type = %q, want transform", unknown.Type)
	}
}

func TestRuleSetRoundTrip(t *testing.T) {
	rs := connection.RuleSet{
		connection.FilterRule{EventTypes: []string{"a", "b"}},
		connection.DelayRule{Seconds: 30},
	}

	data, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got connection.RuleSet
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got.Delay() != 30*time.Second {
		t.Errorf("delay = %v", got.Delay())
	}
}

func TestPassesFilters(t *testing.T) {
	tests := []struct {
		name      string
		rules     connection.RuleSet
		eventType string
		want      bool
	}{
		{
			name:      "no rules passes everything",
			rules:     nil,
			eventType: "anything",
			want:      true,
		},
		{
			name:      "matching filter",
			rules:     connection.RuleSet{connection.FilterRule{EventTypes: []string{"a"}}},
			eventType: "a",
			want:      true,
		},
		{
			name:      "non-matching filter",
			rules:     connection.RuleSet{connection.FilterRule{EventTypes: []string{"a"}}},
			eventType: "b",
			want:      false,
		},
		{
			name: "multiple filters are conjunctive",
			rules: connection.RuleSet{
				connection.FilterRule{EventTypes: []string{"a", "b"}},
				connection.FilterRule{EventTypes: []string{"b", "c"}},
			},
			eventType: "b",
			want:      true,
		},
		{
			name: "conjunction fails when one filter excludes",
			rules: connection.RuleSet{
				connection.FilterRule{EventTypes: []string{"a", "b"}},
				connection.FilterRule{EventTypes: []string{"c"}},
			},
			eventType: "a",
			want:      false,
		},
		{
			name: "delay rules do not affect filtering",
			rules: connection.RuleSet{
				connection.DelayRule{Seconds: 10},
			},
			eventType: "anything",
			want:      true,
		},
		{
			name:      "empty allow-list passes nothing",
			rules:     connection.RuleSet{connection.FilterRule{}},
			eventType: "a",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rules.PassesFilters(tt.eventType); got != tt.want {
				t.Errorf("PassesFilters(%q) = %v, want %v", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestDelay(t *testing.T) {
	if d := (connection.RuleSet{}).Delay(); d != 0 {
		t.Errorf("empty rule set delay = %v, want 0", d)
	}

	rs := connection.RuleSet{
		connection.FilterRule{EventTypes: []string{"a"}},
		connection.DelayRule{Seconds: 120},
	}
	if d := rs.Delay(); d != 2*time.Minute {
		t.Errorf("delay = %v, want 2m", d)
	}

	neg := connection.RuleSet{connection.DelayRule{Seconds: -5}}
	if d := neg.Delay(); d != 0 {
		t.Errorf("negative delay = %v, want 0", d)
	}
}
