// Package idgen issues human-readable entity identifiers such as P00000001.
//
// An identifier is a one-letter kind prefix followed by an eight digit,
// zero-padded counter. Counters live in the id_sequences table, one row per
// kind, and are advanced inside the caller's transaction so a rolled back
// insert does not consume a number.
package idgen

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/medicorex/hms/internal/platform/apperr"
)

const (
	Width    = 8
	MaxValue = 99999999
)

// Kind describes one family of identifiers.
type Kind struct {
	Entity string // audit/entity name, also the id_sequences key
	Prefix string
	Table  string
}

var (
	Patient     = Kind{Entity: "patient", Prefix: "P", Table: "patients"}
	Doctor      = Kind{Entity: "doctor", Prefix: "D", Table: "doctors"}
	Appointment = Kind{Entity: "appointment", Prefix: "A", Table: "appointments"}
	Bill        = Kind{Entity: "bill", Prefix: "B", Table: "bills"}
	User        = Kind{Entity: "user", Prefix: "U", Table: "users"}
)

// Kinds lists every registered kind.
func Kinds() []Kind {
	return []Kind{Patient, Doctor, Appointment, Bill, User}
}

// Generator hands out the next identifier for a kind.
type Generator interface {
	Next(ctx context.Context, k Kind) (string, error)
}

// Format renders n as an identifier of kind k.
func Format(k Kind, n int64) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("idgen: %s counter must be positive, got %d", k.Entity, n)
	}
	if n > MaxValue {
		return "", apperr.ExhaustedIDSpace(k.Entity, Width)
	}
	return fmt.Sprintf("%s%0*d", k.Prefix, Width, n), nil
}

// Parse returns the numeric suffix of id, validating prefix and width.
func Parse(k Kind, id string) (int64, error) {
	if len(id) != len(k.Prefix)+Width || !strings.HasPrefix(id, k.Prefix) {
		return 0, apperr.Validation(k.Entity, "id", "%q is not a valid %s identifier", id, k.Entity)
	}
	digits := id[len(k.Prefix):]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, apperr.Validation(k.Entity, "id", "%q is not a valid %s identifier", id, k.Entity)
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, apperr.Validation(k.Entity, "id", "%q is not a valid %s identifier", id, k.Entity)
	}
	return n, nil
}

// Valid reports whether id is well-formed for kind k.
func Valid(k Kind, id string) bool {
	n, err := Parse(k, id)
	return err == nil && n > 0
}
