// Package stream reassembles a chunked NDJSON response body into records.
//
// The learning-path service streams one JSON object per line: either a
// module of the generated path or an inline error report. The transport
// delivers that stream in chunks of arbitrary size, so the package first
// rebuilds complete lines (LineReassembler) and then parses each line into
// exactly one Record variant (ParseRecord).
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// VideoEntry is one candidate video for a lesson. The service may attach
// extra fields (duration, thumbnail); they carry no rendering contract and
// are dropped at parse time.
type VideoEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// LessonRecord is one lesson of a module with its candidate videos, which
// may be empty.
type LessonRecord struct {
	Title  string       `json:"lesson_title"`
	Videos []VideoEntry `json:"videos"`
}

// ContentRecord is one generated module. A missing or null lessons array
// is treated as empty rather than rejected.
type ContentRecord struct {
	ModuleTitle string         `json:"module_title"`
	Lessons     []LessonRecord `json:"lessons"`
}

// ErrorRecord is an error the service reported in-band, mid-stream.
type ErrorRecord struct {
	Message string `json:"error"`
}

// Record is the tagged union of the two line variants. A parsed line is
// exactly one of *ContentRecord or *ErrorRecord.
type Record interface {
	isRecord()
}

func (*ContentRecord) isRecord() {}
func (*ErrorRecord) isRecord()   {}

// ParseRecord parses one trimmed, non-empty line into a Record. A line
// that is not valid JSON, or is valid JSON but not an object, is a fatal
// parse error for the whole session; there is no skip-and-continue. A JSON
// object carrying an "error" key is an ErrorRecord, anything else a
// ContentRecord; classification keys on the key being present, not on its
// value. Missing lesson or video arrays are absorbed here as empty
// sequences, never escalated.
func ParseRecord(line string) (Record, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	// Unmarshalling the JSON literal null into a map sets it to nil
	// without error; only a real object leaves the map non-nil.
	if fields == nil {
		return nil, errors.New("invalid record: not a JSON object")
	}

	if raw, ok := fields["error"]; ok {
		rec := &ErrorRecord{}
		if err := json.Unmarshal(raw, &rec.Message); err != nil {
			return nil, fmt.Errorf("invalid record: %w", err)
		}
		return rec, nil
	}

	var content ContentRecord
	if err := json.Unmarshal([]byte(line), &content); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	return &content, nil
}
