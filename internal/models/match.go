package models

// MatchField names the part of a record a match was found in.
type MatchField string

const (
	FieldURL          MatchField = "url"
	FieldMethod       MatchField = "method"
	FieldStatus       MatchField = "status"
	FieldHeader       MatchField = "header"
	FieldTrace        MatchField = "trace"
	FieldPayloadBody  MatchField = "payload-body"
	FieldResponseBody MatchField = "response-body"
)

// MatchLocation is one discovered occurrence of a query within a displayed record.
type MatchLocation struct {
	RecordIndex int        `json:"recordIndex" msgpack:"recordIndex"` // position in the displayed list
	Field       MatchField `json:"field" msgpack:"field"`
	Path        string     `json:"path,omitempty" msgpack:"path,omitempty"` // dotted JSON path or header name
	MatchedText string     `json:"matchedText" msgpack:"matchedText"`
}
