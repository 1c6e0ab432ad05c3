package ingest

import (
	"encoding/json"
	"strings"
)

// ContractVersion is the canonical row contract emitted by this worker.
const ContractVersion = "v1"

// Canonical field names recognized in a batch's column mapping.
const (
	FieldFirstName  = "first_name"
	FieldLastName   = "last_name"
	FieldEmail      = "email"
	FieldPhone      = "phone"
	FieldExternalID = "external_id"
	FieldDob        = "dob"
	FieldNotes      = "notes"
	FieldVendor     = "vendor"
)

// CanonicalRow is the versioned structured payload persisted for every
// imported player row. Optional fields are omitted from the JSON entirely;
// dob is the one field that may be serialized as an explicit null.
type CanonicalRow struct {
	ContractVersion string      `json:"contract_version"`
	Source          Source      `json:"source"`
	RowRef          RowRef      `json:"row_ref"`
	Identifiers     Identifiers `json:"identifiers"`
	Profile         Profile     `json:"profile"`
	Notes           string      `json:"notes,omitempty"`
}

type Source struct {
	Vendor   string `json:"vendor,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

type RowRef struct {
	RowNumber int `json:"row_number"`
}

type Identifiers struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// Profile carries the player's name and date of birth. DobNull distinguishes
// "dob column mapped but cell empty" (serialized as dob: null) from "dob not
// mapped at all" (omitted).
type Profile struct {
	FirstName string
	LastName  string
	Dob       string
	DobNull   bool
}

// MarshalJSON emits only the fields that are present. Map-based marshaling
// keeps key order deterministic (encoding/json sorts map keys).
func (p Profile) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 3)
	if p.FirstName != "" {
		m["first_name"] = p.FirstName
	}
	if p.LastName != "" {
		m["last_name"] = p.LastName
	}
	if p.Dob != "" {
		m["dob"] = p.Dob
	} else if p.DobNull {
		m["dob"] = nil
	}
	return json.Marshal(m)
}

// MappedRow is the outcome of applying a batch's column mapping to one CSV
// record: trimmed non-empty values keyed by canonical field name, plus
// whether a mapped dob column held an empty cell.
type MappedRow struct {
	Fields  map[string]string
	DobNull bool
}

// BuildRawMap keys the record's fields by normalized header name. Fields
// beyond the header count are discarded.
func BuildRawMap(headers []string, record []string) map[string]string {
	raw := make(map[string]string, len(headers))
	for i, h := range headers {
		if i >= len(record) {
			break
		}
		raw[h] = strings.TrimSpace(record[i])
	}
	return raw
}

// ExtractFields applies the column mapping (canonical field -> original CSV
// header) to one record. Values are trimmed; empty strings map to absent.
func ExtractFields(headers []string, record []string, mapping map[string]string) MappedRow {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	out := MappedRow{Fields: make(map[string]string, len(mapping))}
	for field, column := range mapping {
		pos, ok := index[strings.TrimSpace(column)]
		if !ok || pos >= len(record) {
			continue
		}
		v := strings.TrimSpace(record[pos])
		if v == "" {
			if field == FieldDob {
				out.DobNull = true
			}
			continue
		}
		out.Fields[field] = v
	}
	return out
}

// BuildCanonicalRow assembles the v1 payload for one data row.
func BuildCanonicalRow(row MappedRow, fileName string, rowNumber int) CanonicalRow {
	return CanonicalRow{
		ContractVersion: ContractVersion,
		Source: Source{
			Vendor:   row.Fields[FieldVendor],
			FileName: fileName,
		},
		RowRef: RowRef{RowNumber: rowNumber},
		Identifiers: Identifiers{
			Email:      row.Fields[FieldEmail],
			Phone:      row.Fields[FieldPhone],
			ExternalID: row.Fields[FieldExternalID],
		},
		Profile: Profile{
			FirstName: row.Fields[FieldFirstName],
			LastName:  row.Fields[FieldLastName],
			Dob:       row.Fields[FieldDob],
			DobNull:   row.DobNull,
		},
		Notes: row.Fields[FieldNotes],
	}
}
