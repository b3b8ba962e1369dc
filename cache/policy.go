package cache

import (
	"fmt"
	"strings"
	"unicode"
)

// Policy is the set of capabilities the record cache runs with. Primary and
// Fallback are independent: a source may be consulted before live retrieval,
// after it, or both. The Include flags choose which identity components make
// up the cache key.
//
// Components left out of the key are shared by every record that differs
// only in them: without IncludeRecordID all records of a source map to one
// row and each write replaces the last. Lookups never return a row stored
// for another record, so such collisions read as misses. Config.Validate
// rejects configured policies that are enabled without IncludeRecordID.
type Policy struct {
	Disabled        bool `json:"disabled" mapstructure:"disabled"`
	Primary         bool `json:"primary" mapstructure:"primary"`
	Fallback        bool `json:"fallback" mapstructure:"fallback"`
	IncludeRecordID bool `json:"include_record_id" mapstructure:"include_record_id"`
	IncludeSource   bool `json:"include_source" mapstructure:"include_source"`
	IncludeUserID   bool `json:"include_user_id" mapstructure:"include_user_id"`
}

// Flag tokens understood by ParsePolicy.
const (
	FlagDisabled        = "disabled"
	FlagPrimary         = "primary"
	FlagFallback        = "fallback"
	FlagIncludeRecordID = "include_record_id"
	FlagIncludeSource   = "include_source"
	FlagIncludeUserID   = "include_user_id"
)

// DisabledPolicy turns the cache off.
var DisabledPolicy = Policy{Disabled: true}

// ParsePolicy builds a Policy from a flag expression such as
// "Primary|Fallback|IncludeRecordId|IncludeSource". Flags may be separated
// by '|', ',' or whitespace and written in CamelCase or snake_case.
func ParsePolicy(expr string) (Policy, error) {
	var p Policy
	fields := strings.FieldsFunc(expr, func(r rune) bool {
		return r == '|' || r == ',' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return p, fmt.Errorf("empty policy expression")
	}

	for _, field := range fields {
		switch flagToken(field) {
		case FlagDisabled:
			p.Disabled = true
		case FlagPrimary:
			p.Primary = true
		case FlagFallback:
			p.Fallback = true
		case FlagIncludeRecordID:
			p.IncludeRecordID = true
		case FlagIncludeSource:
			p.IncludeSource = true
		case FlagIncludeUserID:
			p.IncludeUserID = true
		default:
			return Policy{}, fmt.Errorf("unknown cache policy flag %q", field)
		}
	}
	return p, nil
}

// Enabled reports whether the policy consults the cache at all.
func (p Policy) Enabled() bool {
	return !p.Disabled && (p.Primary || p.Fallback)
}

// String renders the policy as a flag expression accepted by ParsePolicy.
func (p Policy) String() string {
	var flags []string
	add := func(on bool, name string) {
		if on {
			flags = append(flags, name)
		}
	}
	add(p.Disabled, FlagDisabled)
	add(p.Primary, FlagPrimary)
	add(p.Fallback, FlagFallback)
	add(p.IncludeRecordID, FlagIncludeRecordID)
	add(p.IncludeSource, FlagIncludeSource)
	add(p.IncludeUserID, FlagIncludeUserID)
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, "|")
}

// flagToken folds a flag name to snake_case. Acronyms stay together, so
// "IncludeRecordID" and "IncludeRecordId" both yield "include_record_id".
func flagToken(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(runes) + 4)

	pendingSep := false
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if b.Len() > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					pendingSep = true
				}
			}
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
