package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Employee represents a row in the "employee" table.
// Fields map 1-to-1 with columns.
type Employee struct {
	ID        int64
	FirstName string
	LastName  string
	Pay       float64
}

// Email derives the address from the two name fields; it is never stored.
func (e Employee) Email() string {
	return EmailFor(e.FirstName, e.LastName)
}

// FullName is "first last".
func (e Employee) FullName() string {
	return FullNameFor(e.FirstName, e.LastName)
}

// String renders the debug form Employee("first", "last", pay).
func (e Employee) String() string {
	return Represent(e.FirstName, e.LastName, e.Pay)
}

func EmailFor(firstName, lastName string) string {
	return firstName + "." + lastName + "@email.com"
}

func FullNameFor(firstName, lastName string) string {
	return firstName + " " + lastName
}

// Represent formats pay the shortest way that round-trips. Magnitudes in
// [1e-4, 1e16) and zero print in fixed notation with at least one decimal,
// so 1000 prints as 1000.0; anything else uses an exponent (1e+16, 1e-05).
// Names are interpolated verbatim.
func Represent(firstName, lastName string, pay float64) string {
	return fmt.Sprintf("Employee(\"%s\", \"%s\", %s)", firstName, lastName, formatPay(pay))
}

func formatPay(pay float64) string {
	switch {
	case math.IsNaN(pay):
		return "nan"
	case math.IsInf(pay, 1):
		return "inf"
	case math.IsInf(pay, -1):
		return "-inf"
	}
	if abs := math.Abs(pay); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(pay, 'g', -1, 64)
	}
	p := strconv.FormatFloat(pay, 'f', -1, 64)
	if !strings.Contains(p, ".") {
		p += ".0"
	}
	return p
}
