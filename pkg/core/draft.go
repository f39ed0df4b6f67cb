package core

import (
	"encoding/json"
	"strings"
)

// DraftMode discriminates the draft endpoint's tagged-union response.
type DraftMode string

const (
	// ModeDemo means SQL was generated and already executed; the
	// response carries a ready preview.
	ModeDemo DraftMode = "demo"
	// ModeAdvanced means the SQL is a draft requiring an acknowledged
	// execution round-trip.
	ModeAdvanced DraftMode = "advanced"
	// ModeClarify means the planner needs a clarifying answer before it
	// can produce SQL.
	ModeClarify DraftMode = "clarify"
)

// DraftResponse is the validated response of the draft endpoint.
// Exactly one of the mode-specific blocks is populated.
type DraftResponse struct {
	QID  string    `json:"qid"`
	Mode DraftMode `json:"mode"`

	// Demo: executed SQL plus its preview.
	SQL    string   `json:"sql,omitempty"`
	Result *Preview `json:"result,omitempty"`

	// Advanced: draft SQL awaiting execution, with an optional risk note
	// from the policy gate.
	DraftSQL string `json:"draft,omitempty"`
	Risk     string `json:"risk,omitempty"`

	// Clarify: the question to ask back plus quick-reply examples.
	Clarification  string   `json:"clarification,omitempty"`
	ExampleAnswers []string `json:"example_answers,omitempty"`
}

// draftEnvelope mirrors the wire shape: {qid, payload:{mode, ...}}.
type draftEnvelope struct {
	QID     string `json:"qid"`
	Payload struct {
		Mode           string          `json:"mode"`
		Result         json.RawMessage `json:"result"`
		Draft          string          `json:"draft"`
		Final          string          `json:"final"`
		Risk           string          `json:"risk"`
		Clarification  string          `json:"clarification"`
		ExampleAnswers []string        `json:"example_answers"`
	} `json:"payload"`
}

// DecodeDraftResponse validates a raw draft payload into the tagged
// union, rejecting malformed shapes with a *DecodeError.
func DecodeDraftResponse(data []byte) (*DraftResponse, error) {
	var env draftEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Field: "draft", Reason: err.Error()}
	}
	resp := &DraftResponse{QID: env.QID}
	switch DraftMode(env.Payload.Mode) {
	case ModeDemo:
		resp.Mode = ModeDemo
		sql := firstNonBlank(env.Payload.Final, env.Payload.Draft)
		if sql == "" {
			return nil, &DecodeError{Field: "payload.final", Reason: "demo response without SQL"}
		}
		resp.SQL = sql
		if len(env.Payload.Result) == 0 || string(env.Payload.Result) == "null" {
			return nil, &DecodeError{Field: "payload.result", Reason: "demo response without preview"}
		}
		var pv Preview
		if err := json.Unmarshal(env.Payload.Result, &pv); err != nil {
			return nil, err
		}
		resp.Result = &pv
	case ModeAdvanced:
		resp.Mode = ModeAdvanced
		sql := firstNonBlank(env.Payload.Draft, env.Payload.Final)
		if sql == "" {
			return nil, &DecodeError{Field: "payload.draft", Reason: "advanced response without draft SQL"}
		}
		resp.DraftSQL = sql
		resp.Risk = env.Payload.Risk
	case ModeClarify:
		resp.Mode = ModeClarify
		if strings.TrimSpace(env.Payload.Clarification) == "" {
			return nil, &DecodeError{Field: "payload.clarification", Reason: "clarify response without question"}
		}
		resp.Clarification = env.Payload.Clarification
		resp.ExampleAnswers = env.Payload.ExampleAnswers
	default:
		return nil, &DecodeError{Field: "payload.mode", Reason: "unknown mode " + strings.TrimSpace(env.Payload.Mode)}
	}
	return resp, nil
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// RunResult is the validated response of the execute endpoint.
type RunResult struct {
	SQL    string   `json:"sql"`
	Result *Preview `json:"result"`
	Policy string   `json:"policy,omitempty"`
}

// DecodeRunResult validates an execution payload.
func DecodeRunResult(data []byte) (*RunResult, error) {
	var rr RunResult
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, &DecodeError{Field: "execute", Reason: err.Error()}
	}
	if rr.Result == nil {
		return nil, &DecodeError{Field: "execute.result", Reason: "missing preview"}
	}
	return &rr, nil
}
