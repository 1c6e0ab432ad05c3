package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mapped(kv map[string]string) MappedRow {
	return MappedRow{Fields: kv}
}

func TestValidateRowValid(t *testing.T) {
	details := ValidateRow(mapped(map[string]string{
		FieldFirstName: "Alice",
		FieldLastName:  "Smith",
		FieldEmail:     "alice@example.com",
	}))
	assert.Empty(t, details)
}

func TestValidateRowPhoneOnlyIsValid(t *testing.T) {
	details := ValidateRow(mapped(map[string]string{
		FieldFirstName: "Alice",
		FieldLastName:  "Smith",
		FieldPhone:     "5551234",
	}))
	assert.Empty(t, details)
}

func TestValidateRowMissingNames(t *testing.T) {
	details := ValidateRow(mapped(map[string]string{
		FieldEmail: "alice@example.com",
	}))
	assert.Contains(t, details, "missing first_name")
	assert.Contains(t, details, "missing last_name")
}

func TestValidateRowNameTooLong(t *testing.T) {
	details := ValidateRow(mapped(map[string]string{
		FieldFirstName: strings.Repeat("a", 101),
		FieldLastName:  strings.Repeat("b", 100),
		FieldEmail:     "a@b.co",
	}))
	assert.Contains(t, details, "first_name exceeds 100 characters")
	assert.NotContains(t, details, "last_name exceeds 100 characters")
}

func TestValidateRowNameLengthCountsRunes(t *testing.T) {
	// 60 Cyrillic characters are 120 bytes; the limit is characters.
	details := ValidateRow(mapped(map[string]string{
		FieldFirstName: strings.Repeat("Ж", 60),
		FieldLastName:  strings.Repeat("Ж", 100),
		FieldEmail:     "a@b.co",
	}))
	assert.Empty(t, details)

	details = ValidateRow(mapped(map[string]string{
		FieldFirstName: strings.Repeat("Ж", 101),
		FieldLastName:  "B",
		FieldEmail:     "a@b.co",
	}))
	assert.Contains(t, details, "first_name exceeds 100 characters")
}

func TestValidateRowRequiresIdentifier(t *testing.T) {
	details := ValidateRow(mapped(map[string]string{
		FieldFirstName: "Bob",
		FieldLastName:  "Jones",
	}))
	assert.Contains(t, details, "at least one of email or phone is required")
}

func TestValidateRowEmailFormat(t *testing.T) {
	bad := []string{"plainaddress", "a b@c.co", "a@b", "a@b c.co", "@b.co"}
	for _, e := range bad {
		details := ValidateRow(mapped(map[string]string{
			FieldFirstName: "A",
			FieldLastName:  "B",
			FieldEmail:     e,
		}))
		assert.Contains(t, details, "invalid email format", "email %q must fail", e)
	}

	details := ValidateRow(mapped(map[string]string{
		FieldFirstName: "A",
		FieldLastName:  "B",
		FieldEmail:     "a.b+tag@sub.example.com",
	}))
	assert.Empty(t, details)
}

func TestValidateRowPhoneLength(t *testing.T) {
	details := ValidateRow(mapped(map[string]string{
		FieldFirstName: "A",
		FieldLastName:  "B",
		FieldPhone:     "123456",
	}))
	assert.Contains(t, details, "phone must be 7–20 characters")

	details = ValidateRow(mapped(map[string]string{
		FieldFirstName: "A",
		FieldLastName:  "B",
		FieldPhone:     strings.Repeat("1", 21),
	}))
	assert.Contains(t, details, "phone must be 7–20 characters")

	details = ValidateRow(mapped(map[string]string{
		FieldFirstName: "A",
		FieldLastName:  "B",
		FieldPhone:     "1234567",
	}))
	assert.Empty(t, details)
}

func TestValidateRowDobFormat(t *testing.T) {
	details := ValidateRow(mapped(map[string]string{
		FieldFirstName: "A",
		FieldLastName:  "B",
		FieldEmail:     "a@b.co",
		FieldDob:       "02/01/1990",
	}))
	assert.Contains(t, details, "dob must be YYYY-MM-DD format")

	// Permissive: no calendar validation, only the shape.
	details = ValidateRow(mapped(map[string]string{
		FieldFirstName: "A",
		FieldLastName:  "B",
		FieldEmail:     "a@b.co",
		FieldDob:       "1990-13-45",
	}))
	assert.Empty(t, details)
}

func TestValidateRowAccumulatesAllFailures(t *testing.T) {
	details := ValidateRow(mapped(map[string]string{
		FieldDob: "not-a-date",
	}))
	assert.Len(t, details, 4)
}
