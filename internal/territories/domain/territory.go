// Package domain provides core business rules for the territories bounded context.
package domain

import (
	"fmt"
	"strings"
)

// Kind is the granularity of a coverage record.
type Kind string

const (
	KindZipcode Kind = "zipcode"
	KindCity    Kind = "city"
	KindCounty  Kind = "county"
	KindState   Kind = "state"
)

// Priority bounds. 1 is the highest priority, 5 the lowest.
const (
	PriorityHighest = 1
	PriorityLowest  = 5
	PriorityDefault = 3
)

var validKinds = map[Kind]bool{
	KindZipcode: true,
	KindCity:    true,
	KindCounty:  true,
	KindState:   true,
}

// ValidKind reports whether k is a recognized territory kind.
func ValidKind(k Kind) bool {
	return validKinds[k]
}

// ValidPriority reports whether p is within the allowed 1-5 range.
func ValidPriority(p int) bool {
	return p >= PriorityHighest && p <= PriorityLowest
}

// NormalizeValue canonicalizes a territory value for storage and matching.
// State codes are uppercased; everything else is lowercased.
func NormalizeValue(kind Kind, value string) string {
	trimmed := strings.TrimSpace(value)
	if kind == KindState {
		return strings.ToUpper(trimmed)
	}
	return strings.ToLower(trimmed)
}

// Key builds the rotation territory key for a (kind, value) pair. The key
// identifies one fairness cursor, so it must be stable across requests.
func Key(kind Kind, value string) string {
	return fmt.Sprintf("%s:%s", kind, NormalizeValue(kind, value))
}
