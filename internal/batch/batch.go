// Package batch checks lists of card strings one at a time and collects an
// ordered report.
package batch

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/alovak/cardgen-bot/internal/cardgen"
	"github.com/alovak/cardgen-bot/internal/expiry"
)

type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusExpired Status = "expired"
	StatusError   Status = "error"
	// StatusUnknown stands in for any status a Checker reports that the
	// report does not recognize.
	StatusUnknown Status = "unknown"
)

var candidateRe = regexp.MustCompile(`\d{15,16}\|\d{2}\|\d{4}\|\d{3}`)
var exactRe = regexp.MustCompile(`^(\d{15,16})\|(\d{2})\|(\d{4})\|(\d{3})$`)

// Candidate is a parsed number|MM|YYYY|cvv string.
type Candidate struct {
	Number string
	Month  string
	Year   string
	CVV    string
}

func (c Candidate) String() string {
	return strings.Join([]string{c.Number, c.Month, c.Year, c.CVV}, "|")
}

// ParseCandidate parses one number|MM|YYYY|cvv string.
func ParseCandidate(s string) (Candidate, error) {
	m := exactRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Candidate{}, fmt.Errorf("malformed card %q: want number|MM|YYYY|cvv", s)
	}
	return Candidate{Number: m[1], Month: m[2], Year: m[3], CVV: m[4]}, nil
}

// ExtractCandidates returns every card-shaped token in text, in order.
func ExtractCandidates(text string) []string {
	return candidateRe.FindAllString(text, -1)
}

// Checker inspects a single candidate.
type Checker interface {
	Check(ctx context.Context, c Candidate) (Status, string, error)
}

// LocalChecker validates the checksum and expiry offline.
type LocalChecker struct {
	Now func() time.Time
}

func (l LocalChecker) Check(_ context.Context, c Candidate) (Status, string, error) {
	if err := cardgen.ValidatePAN(c.Number); err != nil {
		return StatusInvalid, err.Error(), nil
	}
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	expired, err := expiry.IsExpired(c.Month, c.Year, now, nil)
	if err != nil {
		return StatusInvalid, err.Error(), nil
	}
	if expired {
		return StatusExpired, "expired " + expiry.CardFace(c.Month, c.Year), nil
	}
	return StatusValid, "checksum ok", nil
}

// Result is one report entry.
type Result struct {
	Input   string
	Status  Status
	Message string
}

func (r Result) Line() string {
	return fmt.Sprintf("%s %s → %s", statusIcon(r.Status), r.Input, r.Message)
}

type Report struct {
	Results []Result
}

// String joins all lines in input order.
func (r Report) String() string {
	var sb strings.Builder
	for _, res := range r.Results {
		sb.WriteString(res.Line())
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), " \t\r\n")
}

// Count returns how many results have status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Run checks inputs strictly in order, one at a time. A failure on one item
// yields an error entry for that item only; the report always has one entry
// per input.
func Run(ctx context.Context, checker Checker, inputs []string) Report {
	report := Report{Results: make([]Result, 0, len(inputs))}
	for _, in := range inputs {
		report.Results = append(report.Results, checkOne(ctx, checker, in))
	}
	return report
}

func checkOne(ctx context.Context, checker Checker, in string) (res Result) {
	res.Input = in
	if err := ctx.Err(); err != nil {
		res.Status, res.Message = StatusError, "check error: "+err.Error()
		return res
	}
	c, err := ParseCandidate(in)
	if err != nil {
		res.Status, res.Message = StatusError, err.Error()
		return res
	}
	status, msg, err := checker.Check(ctx, c)
	if err != nil {
		res.Status, res.Message = StatusError, "check error: "+err.Error()
		return res
	}
	switch status {
	case StatusValid, StatusInvalid, StatusExpired, StatusError, StatusUnknown:
	default:
		status = StatusUnknown
	}
	res.Status, res.Message = status, msg
	return res
}

func statusIcon(s Status) string {
	switch s {
	case StatusValid:
		return "✅"
	case StatusExpired:
		return "⌛"
	case StatusError:
		return "⚠️"
	case StatusUnknown:
		return "❔"
	default:
		return "❌"
	}
}
