package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout marks a request aborted by its deadline. There is no
// automatic retry; the caller surfaces a user-facing retry message.
var ErrTimeout = errors.New("request timed out")

// TimeoutUserMessage is the user-visible message attached to aborted
// requests.
const TimeoutUserMessage = "요청 시간이 초과되었습니다. 잠시 후 다시 시도해 주세요."

// HTTPError is a non-2xx backend response. Detail carries the message
// extracted from a `detail` JSON field when present, else the raw body.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Detail)
}

// PolicyError is a backend-enforced SQL safety rejection, recognized
// client-side by substring matching on known phrases. Brittle on
// purpose: the backend does not yet return structured error codes.
// TODO: switch to structured codes once the policy gate exposes them.
type PolicyError struct {
	Detail string
	Hint   string
}

func (e *PolicyError) Error() string {
	return "policy rejection: " + e.Detail
}

// UserMessage renders the rejection with its human hint.
func (e *PolicyError) UserMessage() string {
	if e.Hint == "" {
		return e.Detail
	}
	return e.Detail + "\n" + e.Hint
}

// policyHints maps known policy-gate phrases to actionable hints.
var policyHints = []struct {
	phrase string
	hint   string
}{
	{"WHERE clause required", "조회 조건(WHERE)을 추가해서 다시 질문해 주세요."},
	{"Join limit exceeded", "조인 수가 제한을 초과했습니다. 질문을 더 단순하게 나눠 주세요."},
	{"SELECT statements only", "조회(SELECT) 질의만 실행할 수 있습니다."},
	{"Row limit exceeded", "결과가 너무 큽니다. 기간이나 조건을 좁혀 주세요."},
}

// classifyHTTPError turns a non-2xx response detail into a PolicyError
// when it matches a known policy phrase, else an HTTPError.
func classifyHTTPError(status int, detail string) error {
	for _, ph := range policyHints {
		if strings.Contains(detail, ph.phrase) {
			return &PolicyError{Detail: detail, Hint: ph.hint}
		}
	}
	return &HTTPError{Status: status, Detail: detail}
}

// wrapTransportError maps context deadline errors onto ErrTimeout and
// passes everything else through.
func wrapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// UserMessageFor converts any pipeline error into the message shown in
// the tab and chat transcript.
func UserMessageFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return TimeoutUserMessage
	}
	var pe *PolicyError
	if errors.As(err, &pe) {
		return pe.UserMessage()
	}
	var he *HTTPError
	if errors.As(err, &he) {
		if he.Detail != "" {
			return he.Detail
		}
		return fmt.Sprintf("서버 오류가 발생했습니다 (status %d).", he.Status)
	}
	return err.Error()
}
