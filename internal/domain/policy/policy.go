package policy

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/streamcart/backend/internal/domain/shared"
)

// Scope determines which actions a policy applies to
type Scope string

const (
	ScopeGlobal   Scope = "GLOBAL"
	ScopeOrgUnit  Scope = "ORG_UNIT"
	ScopeAgent    Scope = "AGENT"
	ScopeWorkflow Scope = "WORKFLOW"
)

// IsValid checks if the scope is valid
func (s Scope) IsValid() bool {
	switch s {
	case ScopeGlobal, ScopeOrgUnit, ScopeAgent, ScopeWorkflow:
		return true
	}
	return false
}

// Effect is what a matching rule demands
type Effect string

const (
	EffectDeny            Effect = "DENY"
	EffectRequireApproval Effect = "REQUIRE_APPROVAL"
)

// IsValid checks if the effect is valid
func (e Effect) IsValid() bool {
	return e == EffectDeny || e == EffectRequireApproval
}

// Operator compares a context field against the rule value
type Operator string

const (
	OpEquals      Operator = "EQ"
	OpNotEquals   Operator = "NEQ"
	OpGreaterThan Operator = "GT"
	OpAtLeast     Operator = "GTE"
	OpLessThan    Operator = "LT"
	OpAtMost      Operator = "LTE"
	OpIn          Operator = "IN"
	OpContains    Operator = "CONTAINS"
)

// IsValid checks if the operator is valid
func (o Operator) IsValid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpAtLeast, OpLessThan, OpAtMost, OpIn, OpContains:
		return true
	}
	return false
}

// ValueKind tags the rule value variant
type ValueKind string

const (
	ValueKindString ValueKind = "STRING"
	ValueKindNumber ValueKind = "NUMBER"
	ValueKindBool   ValueKind = "BOOL"
	ValueKindList   ValueKind = "LIST"
)

// Value is the typed comparison operand of a rule
type Value struct {
	Kind ValueKind       `json:"kind"`
	Str  string          `json:"str,omitempty"`
	Num  decimal.Decimal `json:"num,omitempty"`
	Bool bool            `json:"bool,omitempty"`
	List []string        `json:"list,omitempty"`
}

// StringValue builds a string operand
func StringValue(s string) Value {
	return Value{Kind: ValueKindString, Str: s}
}

// NumberValue builds a numeric operand
func NumberValue(n decimal.Decimal) Value {
	return Value{Kind: ValueKindNumber, Num: n}
}

// NumberValueFromInt builds a numeric operand from an integer
func NumberValueFromInt(n int64) Value {
	return Value{Kind: ValueKindNumber, Num: decimal.NewFromInt(n)}
}

// BoolValue builds a boolean operand
func BoolValue(b bool) Value {
	return Value{Kind: ValueKindBool, Bool: b}
}

// ListValue builds a list operand for IN comparisons
func ListValue(items ...string) Value {
	return Value{Kind: ValueKindList, List: items}
}

// Rule is one condition of a policy. A rule matches when the context
// field at FieldPath compares true against Value under Operator; its
// Effect then applies to the whole decision.
type Rule struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Effect      Effect    `json:"effect"`
	FieldPath   string    `json:"field_path"`
	Operator    Operator  `json:"operator"`
	Value       Value     `json:"value"`
}

// NewRule creates a validated rule
func NewRule(description string, effect Effect, fieldPath string, op Operator, value Value) (Rule, error) {
	if !effect.IsValid() {
		return Rule{}, shared.NewDomainError("INVALID_EFFECT",
			fmt.Sprintf("Invalid rule effect: %s", effect))
	}
	if fieldPath == "" {
		return Rule{}, shared.NewDomainError("INVALID_FIELD_PATH", "Rule field path cannot be empty")
	}
	if !op.IsValid() {
		return Rule{}, shared.NewDomainError("INVALID_OPERATOR",
			fmt.Sprintf("Invalid rule operator: %s", op))
	}

	return Rule{
		ID:          uuid.New(),
		Description: description,
		Effect:      effect,
		FieldPath:   fieldPath,
		Operator:    op,
		Value:       value,
	}, nil
}

// Context carries the attributes of a proposed action, e.g.
// {"action": "payout", "amount_cents": 120000, "reconciled": true}
type Context map[string]any

// Matches evaluates the rule against a context. A missing field is not a
// match for comparison operators but an absent-field EQ against a bool
// false is still not a match: absence never satisfies a rule. Type
// mismatches are errors so the governor can fail closed.
func (r Rule) Matches(ctx Context) (bool, error) {
	raw, ok := ctx[r.FieldPath]
	if !ok {
		return false, nil
	}

	switch r.Value.Kind {
	case ValueKindString:
		s, ok := raw.(string)
		if !ok {
			return false, r.typeMismatch(raw)
		}
		return r.compareString(s, r.Value.Str)
	case ValueKindNumber:
		n, err := toDecimal(raw)
		if err != nil {
			return false, r.typeMismatch(raw)
		}
		return r.compareNumber(n, r.Value.Num)
	case ValueKindBool:
		b, ok := raw.(bool)
		if !ok {
			return false, r.typeMismatch(raw)
		}
		switch r.Operator {
		case OpEquals:
			return b == r.Value.Bool, nil
		case OpNotEquals:
			return b != r.Value.Bool, nil
		}
		return false, r.operatorMismatch()
	case ValueKindList:
		s, ok := raw.(string)
		if !ok {
			return false, r.typeMismatch(raw)
		}
		if r.Operator != OpIn {
			return false, r.operatorMismatch()
		}
		for _, item := range r.Value.List {
			if item == s {
				return true, nil
			}
		}
		return false, nil
	}

	return false, shared.NewDomainError("INVALID_RULE_VALUE",
		fmt.Sprintf("Unknown rule value kind: %s", r.Value.Kind))
}

func (r Rule) compareString(actual, expected string) (bool, error) {
	switch r.Operator {
	case OpEquals:
		return actual == expected, nil
	case OpNotEquals:
		return actual != expected, nil
	case OpContains:
		return strings.Contains(actual, expected), nil
	}
	return false, r.operatorMismatch()
}

func (r Rule) compareNumber(actual, expected decimal.Decimal) (bool, error) {
	switch r.Operator {
	case OpEquals:
		return actual.Equal(expected), nil
	case OpNotEquals:
		return !actual.Equal(expected), nil
	case OpGreaterThan:
		return actual.GreaterThan(expected), nil
	case OpAtLeast:
		return actual.GreaterThanOrEqual(expected), nil
	case OpLessThan:
		return actual.LessThan(expected), nil
	case OpAtMost:
		return actual.LessThanOrEqual(expected), nil
	}
	return false, r.operatorMismatch()
}

func (r Rule) typeMismatch(raw any) error {
	return shared.NewDomainError("RULE_TYPE_MISMATCH",
		fmt.Sprintf("Rule %s expects %s operand, context field %s holds %T",
			r.ID, r.Value.Kind, r.FieldPath, raw))
}

func (r Rule) operatorMismatch() error {
	return shared.NewDomainError("RULE_OPERATOR_MISMATCH",
		fmt.Sprintf("Operator %s is not applicable to %s values", r.Operator, r.Value.Kind))
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	}
	return decimal.Zero, fmt.Errorf("value %v is not numeric", raw)
}

// Policy is a named, versioned set of rules. Policies are data, not
// hardcoded branches, so they can be audited and versioned.
type Policy struct {
	shared.BaseAggregateRoot

	Name        string `json:"name"`
	Description string `json:"description"`
	Scope       Scope  `json:"scope"`
	ScopeRef    string `json:"scope_ref,omitempty"`
	Active      bool   `json:"active"`
	Rules       []Rule `json:"rules"`
}

// NewPolicy creates an active policy at version 1
func NewPolicy(name, description string, scope Scope, scopeRef string) (*Policy, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Policy name cannot be empty")
	}
	if !scope.IsValid() {
		return nil, shared.NewDomainError("INVALID_SCOPE",
			fmt.Sprintf("Invalid policy scope: %s", scope))
	}
	if scope != ScopeGlobal && scopeRef == "" {
		return nil, shared.NewDomainError("INVALID_SCOPE_REF",
			"Non-global policies require a scope reference")
	}

	return &Policy{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Description:       description,
		Scope:             scope,
		ScopeRef:          scopeRef,
		Active:            true,
		Rules:             make([]Rule, 0),
	}, nil
}

// AddRule appends a rule
func (p *Policy) AddRule(rule Rule) {
	p.Rules = append(p.Rules, rule)
}

// ReplaceRules swaps the rule set for a new revision
func (p *Policy) ReplaceRules(rules []Rule) {
	p.Rules = rules
}

// Deactivate disables the policy; the row is retained for audit
func (p *Policy) Deactivate() {
	p.Active = false
}

// Activate re-enables the policy
func (p *Policy) Activate() {
	p.Active = true
}

// AppliesTo reports whether the policy covers a context, based on scope
func (p *Policy) AppliesTo(ctx Context) bool {
	if !p.Active {
		return false
	}
	switch p.Scope {
	case ScopeGlobal:
		return true
	case ScopeOrgUnit:
		return contextFieldEquals(ctx, "org_unit", p.ScopeRef)
	case ScopeAgent:
		return contextFieldEquals(ctx, "agent", p.ScopeRef)
	case ScopeWorkflow:
		return contextFieldEquals(ctx, "workflow", p.ScopeRef)
	}
	return false
}

func contextFieldEquals(ctx Context, field, expected string) bool {
	raw, ok := ctx[field]
	if !ok {
		return false
	}
	s, ok := raw.(string)
	return ok && s == expected
}
