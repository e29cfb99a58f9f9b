// Package api talks to the Rediacc middleware. Every call is a POST to a
// stored-procedure endpoint authenticated by a single-use request token;
// the response carries the successor token for the next call.
package api

import (
	"encoding/json"
	"strings"
)

// Row is one record from a result set. Values keep their JSON form until a
// caller asks for a concrete type.
type Row map[string]json.RawMessage

// String returns the string value under key, or "" when absent or not a string.
func (r Row) String(key string) string {
	raw, ok := r[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// ResultSet mirrors the middleware's tabular envelope.
type ResultSet struct {
	Data []Row `json:"data"`
}

// Response is the full envelope returned by every stored-procedure endpoint.
type Response struct {
	Failure          int             `json:"failure"`
	Message          string          `json:"message"`
	Errors           []string        `json:"errors"`
	NextRequestToken string          `json:"nextRequestToken"`
	ResultSets       []ResultSet     `json:"resultSets"`
	Raw              json.RawMessage `json:"-"`
}

// Failed reports whether the middleware flagged the call as unsuccessful.
func (r *Response) Failed() bool {
	return r.Failure != 0 || len(r.Errors) > 0
}

// ErrorText joins the middleware's error strings into one message.
func (r *Response) ErrorText() string {
	if len(r.Errors) > 0 {
		return strings.Join(r.Errors, "; ")
	}
	if r.Message != "" {
		return r.Message
	}
	return "request failed"
}

// SuccessorToken extracts the single-use token issued for the next request.
// The middleware embeds it in the first result set's rows; older deployments
// put it at the top level instead, so that is the fallback.
func (r *Response) SuccessorToken() string {
	if len(r.ResultSets) > 0 {
		for _, row := range r.ResultSets[0].Data {
			if tok := row.String("nextRequestToken"); tok != "" {
				return tok
			}
		}
	}
	return r.NextRequestToken
}

// Rows returns the data rows of result set idx, dropping rows that carry
// nothing but the successor token.
func (r *Response) Rows(idx int) []Row {
	if idx >= len(r.ResultSets) {
		return nil
	}
	rows := make([]Row, 0, len(r.ResultSets[idx].Data))
	for _, row := range r.ResultSets[idx].Data {
		if len(row) == 1 {
			if _, only := row["nextRequestToken"]; only {
				continue
			}
		}
		rows = append(rows, row)
	}
	return rows
}
