package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"splitpay/internal/clock"
)

const (
	approvalCodeApproved   = "00"
	approvalCodeInProgress = "09"
)

// RetryPolicy bounds how long a transaction is polled.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy polls every 2 seconds for up to 2 minutes.
var DefaultRetryPolicy = RetryPolicy{
	Interval:    2 * time.Second,
	MaxAttempts: 60,
}

// WithDefaults fills unset fields from DefaultRetryPolicy.
func (p RetryPolicy) WithDefaults() RetryPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultRetryPolicy.Interval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	return p
}

// ReportKind tags a parsed status response.
type ReportKind int

const (
	ReportUnrecognized ReportKind = iota
	ReportPending
	ReportApproved
	ReportRejected
)

func (k ReportKind) String() string {
	switch k {
	case ReportPending:
		return "pending"
	case ReportApproved:
		return "approved"
	case ReportRejected:
		return "rejected"
	default:
		return "unrecognized"
	}
}

// StatusReport is one status response reduced to its meaning.
type StatusReport struct {
	Kind    ReportKind
	Message string
}

var (
	pendingStatuses  = map[string]bool{"PENDING": true, "IN_PROGRESS": true, "PROCESSING": true, "SENDING": true}
	approvedStatuses = map[string]bool{"APPROVED": true}
	rejectedStatuses = map[string]bool{"REJECTED": true, "DECLINED": true, "ERROR": true, "FAILED": true, "CANCELLED": true}
)

// ParseStatusReport recognizes the three status shapes the vendor returns:
// an explicit status field, a bare approval code, or either of those nested
// in a transaction detail object.
func ParseStatusReport(data []byte) StatusReport {
	body, ok := decodeVendorBody(data)
	if !ok {
		return StatusReport{Kind: ReportUnrecognized, Message: "unparseable status response: " + snippet(data)}
	}

	if r, ok := explicitStatusReport(body); ok {
		return r
	}
	if r, ok := approvalCodeReport(body); ok {
		return r
	}
	for _, n := range body.nested() {
		if r, ok := explicitStatusReport(n); ok {
			return r
		}
		if r, ok := approvalCodeReport(n); ok {
			return r
		}
	}

	return StatusReport{Kind: ReportUnrecognized, Message: "unrecognized status response: " + snippet(data)}
}

func explicitStatusReport(b *vendorBody) (StatusReport, bool) {
	status := strings.ToUpper(b.Status.String())
	switch {
	case status == "":
		return StatusReport{}, false
	case pendingStatuses[status]:
		return StatusReport{Kind: ReportPending}, true
	case approvedStatuses[status]:
		return StatusReport{Kind: ReportApproved}, true
	case rejectedStatuses[status]:
		msg := b.humanMessage()
		if msg == "" {
			msg = "transaction " + strings.ToLower(status)
		}
		return StatusReport{Kind: ReportRejected, Message: msg}, true
	}
	return StatusReport{}, false
}

func approvalCodeReport(b *vendorBody) (StatusReport, bool) {
	if b.ApprovalCode == nil || b.ApprovalCode.String() == "" {
		return StatusReport{}, false
	}

	code := b.ApprovalCode.String()
	switch code {
	case approvalCodeApproved:
		return StatusReport{Kind: ReportApproved}, true
	case approvalCodeInProgress:
		return StatusReport{Kind: ReportPending}, true
	}

	msg := b.humanMessage()
	if msg == "" {
		msg = "declined with approval code " + code
	}
	return StatusReport{Kind: ReportRejected, Message: msg}, true
}

// PollOutcome is the terminal result of polling one transaction.
type PollOutcome string

const (
	PollApproved PollOutcome = "approved"
	PollRejected PollOutcome = "rejected"
	PollTimeout  PollOutcome = "timeout"
	PollError    PollOutcome = "error"
)

// PollResult contains the result of polling one transaction.
type PollResult struct {
	Outcome  PollOutcome
	Message  string
	Details  json.RawMessage
	Attempts int
}

// StatusPoller polls a terminal transaction until it reaches an outcome.
type StatusPoller struct {
	terminal TerminalAPI
	clock    clock.Clock
}

// NewStatusPoller creates a new StatusPoller.
func NewStatusPoller(terminal TerminalAPI, clk clock.Clock) *StatusPoller {
	return &StatusPoller{terminal: terminal, clock: clk}
}

// Poll blocks until the transaction is approved or rejected, or the policy's
// attempts run out. Transport failures and unrecognized bodies count as
// pending while attempts remain.
func (p *StatusPoller) Poll(ctx context.Context, transactionID string, session SessionContext, policy RetryPolicy) PollResult {
	policy = policy.WithDefaults()

	var lastFailure string
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.clock.Sleep(ctx, policy.Interval); err != nil {
				return PollResult{
					Outcome:  PollError,
					Message:  "polling interrupted: " + err.Error(),
					Attempts: attempt - 1,
				}
			}
		}

		resp, err := p.terminal.TransactionStatus(ctx, transactionID, session.SessionID)
		if err != nil {
			lastFailure = "status request failed: " + err.Error()
			log.Printf("split poll tx=%s attempt=%d/%d err=%q", transactionID, attempt, policy.MaxAttempts, err)
			continue
		}

		report := ParseStatusReport(resp.Body)
		switch report.Kind {
		case ReportApproved:
			return PollResult{Outcome: PollApproved, Details: json.RawMessage(resp.Body), Attempts: attempt}
		case ReportRejected:
			return PollResult{Outcome: PollRejected, Message: report.Message, Attempts: attempt}
		case ReportPending:
			lastFailure = ""
		case ReportUnrecognized:
			lastFailure = report.Message
			log.Printf("split poll tx=%s attempt=%d/%d %s", transactionID, attempt, policy.MaxAttempts, report.Message)
		}
	}

	if lastFailure != "" {
		return PollResult{Outcome: PollError, Message: lastFailure, Attempts: policy.MaxAttempts}
	}
	return PollResult{
		Outcome:  PollTimeout,
		Message:  fmt.Sprintf("polling exceeded %d attempts", policy.MaxAttempts),
		Attempts: policy.MaxAttempts,
	}
}
