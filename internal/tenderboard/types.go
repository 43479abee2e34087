package tenderboard

import (
	"bytes"
	"encoding/json"
)

// Labels used by the portal's listing markup and the keys they produce
const (
	LabelIndex     = "index"
	LabelComposite = "No./Tender Subject"

	KeyTenderSubject = "Tender Subject"
	KeyTenderNumber  = "Tender Number"
	KeyTenderLink    = "Tender Link"
)

// Ministry is an organization usable as a tender filter
type Ministry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Field is one label/value pair of a Record
type Field struct {
	Label string
	Value string
}

// Record is one extracted listing row. Fields keep the order in which their
// labels were first extracted.
type Record struct {
	fields []Field
}

// NewRecord builds a record from fields. A repeated label overwrites the
// earlier value in place.
func NewRecord(fields ...Field) Record {
	var r Record
	for _, f := range fields {
		r.set(f.Label, f.Value)
	}
	return r
}

func (r *Record) set(label, value string) {
	for i := range r.fields {
		if r.fields[i].Label == label {
			r.fields[i].Value = value
			return
		}
	}
	r.fields = append(r.fields, Field{Label: label, Value: value})
}

// Get returns the value stored under label
func (r Record) Get(label string) (string, bool) {
	for _, f := range r.fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}

// Len returns the number of fields
func (r Record) Len() int {
	return len(r.fields)
}

// Labels returns the record's labels in order
func (r Record) Labels() []string {
	labels := make([]string, len(r.fields))
	for i, f := range r.fields {
		labels[i] = f.Label
	}
	return labels
}

// Fields returns a copy of the record's fields
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// MarshalJSON encodes the record as an object, preserving field order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Label)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Columns returns the union of labels across records in first-seen order
func Columns(records []Record) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, r := range records {
		for _, f := range r.fields {
			if !seen[f.Label] {
				seen[f.Label] = true
				columns = append(columns, f.Label)
			}
		}
	}
	return columns
}

// PageStatus tags the outcome of fetching and extracting one page
type PageStatus int

const (
	// PageUnknown is the zero value, for a page that was never fetched
	PageUnknown PageStatus = iota
	// PageOK means the page produced at least one record
	PageOK
	// PageEmpty means the page was well formed but listed no tenders
	PageEmpty
	// PageFailed means the page could not be fetched or its markup was broken
	PageFailed
)

// String returns the status name used in logs and metrics
func (s PageStatus) String() string {
	switch s {
	case PageOK:
		return "ok"
	case PageEmpty:
		return "empty"
	case PageFailed:
		return "failed"
	case PageUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// PageResult is the outcome for one page. Err is set only for PageFailed.
type PageResult struct {
	Page    int
	Records []Record
	Status  PageStatus
	Err     error
}

func okResult(page int, records []Record) PageResult {
	if len(records) == 0 {
		return PageResult{Page: page, Status: PageEmpty}
	}
	return PageResult{Page: page, Records: records, Status: PageOK}
}

func failedResult(page int, err error) PageResult {
	return PageResult{Page: page, Status: PageFailed, Err: err}
}
