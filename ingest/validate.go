package ingest

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

const maxNameLen = 100

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// Permissive shape check only; no calendar validation.
	dobRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ValidateRow runs the canonical row rules against one mapped row and
// returns every failure message. An empty slice means the row is staged.
func ValidateRow(row MappedRow) []string {
	var details []string

	if first, ok := row.Fields[FieldFirstName]; !ok {
		details = append(details, "missing first_name")
	} else if utf8.RuneCountInString(first) > maxNameLen {
		details = append(details, fmt.Sprintf("first_name exceeds %d characters", maxNameLen))
	}

	if last, ok := row.Fields[FieldLastName]; !ok {
		details = append(details, "missing last_name")
	} else if utf8.RuneCountInString(last) > maxNameLen {
		details = append(details, fmt.Sprintf("last_name exceeds %d characters", maxNameLen))
	}

	email, hasEmail := row.Fields[FieldEmail]
	phone, hasPhone := row.Fields[FieldPhone]

	if !hasEmail && !hasPhone {
		details = append(details, "at least one of email or phone is required")
	}
	if hasEmail && !emailRe.MatchString(email) {
		details = append(details, "invalid email format")
	}
	if hasPhone && (len(phone) < 7 || len(phone) > 20) {
		details = append(details, "phone must be 7–20 characters")
	}

	if dob, ok := row.Fields[FieldDob]; ok && !dobRe.MatchString(dob) {
		details = append(details, "dob must be YYYY-MM-DD format")
	}

	return details
}
