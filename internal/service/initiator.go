package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"splitpay/internal/domain"
	"splitpay/internal/ecr"
)

// TerminalAPI is the vendor ECR API used by the split payment flow.
type TerminalAPI interface {
	StartCardSale(ctx context.Context, req ecr.SaleRequest) (*ecr.Response, error)
	StartMobileWalletSale(ctx context.Context, req ecr.SaleRequest) (*ecr.Response, error)
	TransactionStatus(ctx context.Context, transactionID, sessionID string) (*ecr.Response, error)
}

var _ TerminalAPI = (*ecr.Client)(nil)

// SessionContext identifies the terminal session every part runs on.
type SessionContext struct {
	SessionID    string
	TerminalID   string
	StationID    string
	CashierID    string
	PrintReceipt bool
}

// PartRequest contains the parameters for starting one part transaction.
type PartRequest struct {
	Method             domain.PaymentMethod
	Amount             domain.TaxAmount
	Reference          int64
	PrecedingReference int64
	Session            SessionContext
}

// InitiationOutcome is the normalized result of starting a part transaction.
type InitiationOutcome struct {
	Success       bool
	TransactionID string
	Payload       json.RawMessage
	Error         string
}

// PartInitiator starts exactly one terminal transaction per call.
// It never retries: a repeated sale would charge the customer twice.
type PartInitiator struct {
	terminal TerminalAPI
}

// NewPartInitiator creates a new PartInitiator.
func NewPartInitiator(terminal TerminalAPI) *PartInitiator {
	return &PartInitiator{terminal: terminal}
}

// Initiate starts the sale for one part and normalizes the vendor response.
func (i *PartInitiator) Initiate(ctx context.Context, req PartRequest) InitiationOutcome {
	sale := ecr.SaleRequest{
		TerminalID:         req.Session.TerminalID,
		StationID:          req.Session.StationID,
		CashierID:          req.Session.CashierID,
		SessionID:          req.Session.SessionID,
		Reference:          req.Reference,
		PrecedingReference: req.PrecedingReference,
		Amount:             req.Amount,
		PrintReceipt:       req.Session.PrintReceipt,
	}

	var (
		resp *ecr.Response
		err  error
	)
	switch req.Method {
	case domain.PaymentMethodCard:
		resp, err = i.terminal.StartCardSale(ctx, sale)
	case domain.PaymentMethodMobileWallet:
		resp, err = i.terminal.StartMobileWalletSale(ctx, sale)
	default:
		return InitiationOutcome{Error: fmt.Sprintf("unsupported payment method %q", req.Method)}
	}
	if err != nil {
		return InitiationOutcome{Error: "initiation request failed: " + err.Error()}
	}

	return NormalizeInitiation(resp)
}

// initiationShape tags the forms a sale response can take.
type initiationShape int

const (
	initiationMalformed initiationShape = iota
	initiationAccepted
	initiationErrorCode
	initiationDeclined
)

var declinedStatuses = map[string]bool{
	"DECLINED":  true,
	"REJECTED":  true,
	"ERROR":     true,
	"FAILED":    true,
	"CANCELLED": true,
}

// NormalizeInitiation collapses every sale response shape into one outcome.
func NormalizeInitiation(resp *ecr.Response) InitiationOutcome {
	shape, body := classifyInitiation(resp)

	switch shape {
	case initiationAccepted:
		return acceptedInitiation(resp, body)
	case initiationErrorCode:
		return errorCodeInitiation(body)
	case initiationDeclined:
		return declinedInitiation(body)
	case initiationMalformed:
		return malformedInitiation(resp)
	}
	return malformedInitiation(resp)
}

func classifyInitiation(resp *ecr.Response) (initiationShape, *vendorBody) {
	body, ok := decodeVendorBody(resp.Body)
	if !ok {
		return initiationMalformed, nil
	}

	if hasErrorCode(body) {
		return initiationErrorCode, body
	}

	candidates := append([]*vendorBody{body}, body.nested()...)
	for _, c := range candidates {
		if declinedStatuses[strings.ToUpper(c.Status.String())] {
			return initiationDeclined, c
		}
	}

	if resp.OK() {
		for _, c := range candidates {
			if c.TransactionID.String() != "" {
				return initiationAccepted, c
			}
		}
	}

	return initiationMalformed, body
}

func hasErrorCode(b *vendorBody) bool {
	if b.ErrorCode.String() != "" {
		return true
	}
	if len(b.Error) == 0 || string(b.Error) == "null" {
		return false
	}
	var e vendorError
	if err := json.Unmarshal(b.Error, &e); err == nil {
		return e.Code.String() != "" || e.Message != ""
	}
	var s string
	return json.Unmarshal(b.Error, &s) == nil && strings.TrimSpace(s) != ""
}

func acceptedInitiation(resp *ecr.Response, body *vendorBody) InitiationOutcome {
	return InitiationOutcome{
		Success:       true,
		TransactionID: body.TransactionID.String(),
		Payload:       json.RawMessage(resp.Body),
	}
}

func errorCodeInitiation(body *vendorBody) InitiationOutcome {
	code := body.ErrorCode.String()
	message := strings.TrimSpace(body.ErrorMessage)

	var e vendorError
	if len(body.Error) > 0 && json.Unmarshal(body.Error, &e) == nil {
		if code == "" {
			code = e.Code.String()
		}
		if message == "" {
			message = strings.TrimSpace(e.Message)
		}
	} else {
		var s string
		if json.Unmarshal(body.Error, &s) == nil && message == "" {
			message = strings.TrimSpace(s)
		}
	}
	if message == "" {
		message = body.humanMessage()
	}

	switch {
	case code != "" && message != "":
		return InitiationOutcome{Error: code + ": " + message}
	case code != "":
		return InitiationOutcome{Error: "vendor error " + code}
	default:
		return InitiationOutcome{Error: message}
	}
}

func declinedInitiation(body *vendorBody) InitiationOutcome {
	if msg := body.humanMessage(); msg != "" {
		return InitiationOutcome{Error: msg}
	}
	return InitiationOutcome{Error: fmt.Sprintf("transaction declined (status %s)", body.Status.String())}
}

func malformedInitiation(resp *ecr.Response) InitiationOutcome {
	if !resp.OK() {
		return InitiationOutcome{Error: fmt.Sprintf("vendor returned HTTP %d: %s", resp.StatusCode, snippet(resp.Body))}
	}
	return InitiationOutcome{Error: "unexpected vendor response: " + snippet(resp.Body)}
}
