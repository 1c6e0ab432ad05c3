package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRawMapDiscardsExtraFields(t *testing.T) {
	headers := []string{"a", "b"}
	raw := BuildRawMap(headers, []string{"1", " 2 ", "3"})
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, raw)
}

func TestBuildRawMapShortRecord(t *testing.T) {
	headers := []string{"a", "b", "c"}
	raw := BuildRawMap(headers, []string{"1"})
	assert.Equal(t, map[string]string{"a": "1"}, raw)
}

func TestExtractFieldsTrimsAndDropsEmpty(t *testing.T) {
	headers := []string{"email", "first", "last"}
	record := []string{" alice@example.com ", "   ", "Smith"}
	mapping := map[string]string{
		FieldEmail:     "email",
		FieldFirstName: "first",
		FieldLastName:  "last",
	}

	row := ExtractFields(headers, record, mapping)
	assert.Equal(t, "alice@example.com", row.Fields[FieldEmail])
	assert.Equal(t, "Smith", row.Fields[FieldLastName])
	_, present := row.Fields[FieldFirstName]
	assert.False(t, present, "whitespace-only value must map to absent")
}

func TestExtractFieldsUnmappedColumnIgnored(t *testing.T) {
	headers := []string{"email"}
	record := []string{"a@b.co"}
	mapping := map[string]string{FieldEmail: "email", FieldPhone: "telephone"}

	row := ExtractFields(headers, record, mapping)
	assert.Equal(t, map[string]string{FieldEmail: "a@b.co"}, row.Fields)
	assert.False(t, row.DobNull)
}

func TestExtractFieldsDobNullWhenMappedButEmpty(t *testing.T) {
	headers := []string{"dob", "email"}
	record := []string{"", "a@b.co"}
	mapping := map[string]string{FieldDob: "dob", FieldEmail: "email"}

	row := ExtractFields(headers, record, mapping)
	assert.True(t, row.DobNull)
	_, present := row.Fields[FieldDob]
	assert.False(t, present)
}

func TestCanonicalRowMarshalOmitsAbsent(t *testing.T) {
	row := MappedRow{Fields: map[string]string{
		FieldEmail:     "alice@example.com",
		FieldFirstName: "Alice",
		FieldLastName:  "Smith",
	}}
	payload := BuildCanonicalRow(row, "players.csv", 1)

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Equal(t, "v1", m["contract_version"])
	assert.Equal(t, map[string]any{"file_name": "players.csv"}, m["source"])
	assert.Equal(t, map[string]any{"row_number": float64(1)}, m["row_ref"])
	assert.Equal(t, map[string]any{"email": "alice@example.com"}, m["identifiers"])
	assert.Equal(t, map[string]any{"first_name": "Alice", "last_name": "Smith"}, m["profile"])
	_, hasNotes := m["notes"]
	assert.False(t, hasNotes)
}

func TestCanonicalRowMarshalDobExplicitNull(t *testing.T) {
	row := MappedRow{
		Fields: map[string]string{
			FieldFirstName: "Bob",
			FieldLastName:  "Jones",
			FieldPhone:     "5551234567",
		},
		DobNull: true,
	}
	payload := BuildCanonicalRow(row, "players.csv", 7)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"dob":null`)
}

func TestCanonicalRowMarshalDobOmittedWhenUnmapped(t *testing.T) {
	row := MappedRow{Fields: map[string]string{
		FieldFirstName: "Bob",
		FieldLastName:  "Jones",
		FieldEmail:     "bob@example.com",
	}}
	payload := BuildCanonicalRow(row, "players.csv", 2)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dob")
}

func TestCanonicalRowMarshalDeterministic(t *testing.T) {
	row := MappedRow{Fields: map[string]string{
		FieldEmail:     "a@b.co",
		FieldFirstName: "A",
		FieldLastName:  "B",
		FieldVendor:    "acme",
		FieldNotes:     "vip",
		FieldDob:       "1990-01-02",
	}}
	payload := BuildCanonicalRow(row, "f.csv", 3)

	first, err := json.Marshal(payload)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(payload)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}
