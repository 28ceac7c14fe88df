package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLength is the longest first or last name accepted, in characters.
const MaxNameLength = 100

// Field identifiers reported in FieldError.Field.
const (
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldAgreed    = "agreed"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateAgreement checks an agreement submission and returns every
// violation found, not just the first. An empty result means the input is
// acceptable.
func ValidateAgreement(in AgreementInput) []FieldError {
	var errs []FieldError

	errs = appendNameErrors(errs, FieldFirstName, "First name", in.FirstName)
	errs = appendNameErrors(errs, FieldLastName, "Last name", in.LastName)

	if !in.Agreed {
		errs = append(errs, FieldError{Field: FieldAgreed, Message: "You must agree to the rules"})
	}
	return errs
}

func appendNameErrors(errs []FieldError, field, label, value string) []FieldError {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		errs = append(errs, FieldError{Field: field, Message: label + " is required"})
	case utf8.RuneCountInString(v) > MaxNameLength:
		errs = append(errs, FieldError{Field: field, Message: label + " is too long"})
	}
	return errs
}

// NormalizeName trims s and title-cases each whitespace-delimited word:
// the first letter is upper-cased and the rest lower-cased, whatever the
// input casing. Inner runs of whitespace collapse to a single space.
func NormalizeName(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// NormalizeNames applies NormalizeName to a first and last name pair.
func NormalizeNames(rawFirst, rawLast string) (first, last string) {
	return NormalizeName(rawFirst), NormalizeName(rawLast)
}
