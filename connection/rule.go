package connection

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleType discriminates the rule union on the wire.
type RuleType string

const (
	// RuleFilter restricts routing to an allow-list of event types.
	RuleFilter RuleType = "filter"

	// RuleDelay defers delivery by a number of seconds.
	RuleDelay RuleType = "delay"
)

// Rule is a closed union of routing rules: FilterRule or DelayRule.
// Unknown rule types are rejected at decode time, not silently ignored.
type Rule interface {
	Type() RuleType
}

// FilterRule passes an event only when its extracted type is in EventTypes.
// An empty list passes nothing; multiple filter rules on one connection are
// conjunctive.
type FilterRule struct {
	EventTypes []string `json:"event_types"`
}

// Type implements Rule.
func (FilterRule) Type() RuleType { return RuleFilter }

// Matches reports whether the event type is in the allow-list.
func (r FilterRule) Matches(eventType string) bool {
	for _, t := range r.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// DelayRule defers delivery scheduling by Seconds.
type DelayRule struct {
	Seconds int `json:"seconds"`
}

// Type implements Rule.
func (DelayRule) Type() RuleType { return RuleDelay }

// RuleSet is an ordered list of rules with a tagged-union wire format:
//
//	[{"type":"filter","config":{"event_types":["a"]}},
//	 {"type":"delay","config":{"seconds":60}}]
type RuleSet []Rule

// UnknownRuleTypeError is returned when decoding a rule with an
// unrecognized type tag.
type UnknownRuleTypeError struct {
	Type string
}

func (e *UnknownRuleTypeError) Error() string {
	return fmt.Sprintf("connection: unknown rule type %q", e.Type)
}

type ruleWire struct {
	Type   RuleType        `json:"type"`
	Config json.RawMessage `json:"config"`
}

// UnmarshalJSON decodes the tagged-union wire format, rejecting unknown
// rule types.
func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	var wire []ruleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	rules := make(RuleSet, 0, len(wire))
	for _, w := range wire {
		switch w.Type {
		case RuleFilter:
			var r FilterRule
			if len(w.Config) > 0 {
				if err := json.Unmarshal(w.Config, &r); err != nil {
					return fmt.Errorf("connection: decode filter rule: %w", err)
				}
			}
			rules = append(rules, r)
		case RuleDelay:
			var r DelayRule
			if len(w.Config) > 0 {
				if err := json.Unmarshal(w.Config, &r); err != nil {
					return fmt.Errorf("connection: decode delay rule: %w", err)
				}
			}
			rules = append(rules, r)
		default:
			return &UnknownRuleTypeError{Type: string(w.Type)}
		}
	}

	*rs = rules
	return nil
}

// MarshalJSON encodes the tagged-union wire format.
func (rs RuleSet) MarshalJSON() ([]byte, error) {
	wire := make([]ruleWire, 0, len(rs))
	for _, r := range rs {
		cfg, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		wire = append(wire, ruleWire{Type: r.Type(), Config: cfg})
	}
	return json.Marshal(wire)
}

// PassesFilters reports whether an event type passes every filter rule.
// A rule set with no filter rules passes everything.
func (rs RuleSet) PassesFilters(eventType string) bool {
	for _, r := range rs {
		if f, ok := r.(FilterRule); ok {
			if !f.Matches(eventType) {
				return false
			}
		}
	}
	return true
}

// Delay returns the deferral from the first delay rule, or zero.
func (rs RuleSet) Delay() time.Duration {
	for _, r := range rs {
		if d, ok := r.(DelayRule); ok {
			if d.Seconds <= 0 {
				return 0
			}
			return time.Duration(d.Seconds) * time.Second
		}
	}
	return 0
}
