package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"splitpay/internal/domain"
	"splitpay/internal/ecr"
	"splitpay/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK TERMINAL
// ──────────────────────────────────────────────

// Call kinds recorded by MockTerminal.
const (
	CallCardSale         = "card_sale"
	CallMobileWalletSale = "mobile_wallet_sale"
	CallStatus           = "status"
)

// TerminalCall is one recorded call to the mock terminal.
type TerminalCall struct {
	Kind          string
	Sale          ecr.SaleRequest
	TransactionID string
	SessionID     string
}

// Reply is a scripted vendor answer. A non-nil Err simulates a transport failure.
type Reply struct {
	StatusCode int
	Body       string
	Err        error
}

// Accepted is a sale reply carrying a transaction id.
func Accepted(transactionID string) Reply {
	return Reply{StatusCode: 200, Body: fmt.Sprintf(`{"transaction_id":%q,"status":"PENDING"}`, transactionID)}
}

// Declined is a sale reply declining the transaction.
func Declined(message string) Reply {
	return Reply{StatusCode: 200, Body: fmt.Sprintf(`{"status":"DECLINED","message":%q}`, message)}
}

// Status is a status reply with an explicit status field.
func Status(status string) Reply {
	return Reply{StatusCode: 200, Body: fmt.Sprintf(`{"status":%q}`, status)}
}

// ErrTransport is the error used for simulated network failures.
var ErrTransport = errors.New("connection reset by peer")

// MockTerminal is a scripted implementation of service.TerminalAPI. Sale
// replies are consumed in order. Status replies are consumed in order per
// transaction and the last one repeats.
type MockTerminal struct {
	mu       sync.Mutex
	calls    []TerminalCall
	sales    []Reply
	statuses map[string][]Reply

	// OnStatus, when set, runs before each status call is answered.
	OnStatus func(transactionID string)
}

// NewMockTerminal creates a new mock terminal.
func NewMockTerminal() *MockTerminal {
	return &MockTerminal{statuses: make(map[string][]Reply)}
}

// QueueSale appends replies for upcoming sale calls.
func (m *MockTerminal) QueueSale(replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, replies...)
}

// QueueStatus appends replies for status calls on transactionID.
func (m *MockTerminal) QueueStatus(transactionID string, replies ...Reply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[transactionID] = append(m.statuses[transactionID], replies...)
}

func (m *MockTerminal) StartCardSale(ctx context.Context, req ecr.SaleRequest) (*ecr.Response, error) {
	return m.sale(CallCardSale, req)
}

func (m *MockTerminal) StartMobileWalletSale(ctx context.Context, req ecr.SaleRequest) (*ecr.Response, error) {
	return m.sale(CallMobileWalletSale, req)
}

func (m *MockTerminal) TransactionStatus(ctx context.Context, transactionID, sessionID string) (*ecr.Response, error) {
	if m.OnStatus != nil {
		m.OnStatus(transactionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, TerminalCall{Kind: CallStatus, TransactionID: transactionID, SessionID: sessionID})

	queue := m.statuses[transactionID]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no status scripted for %s", transactionID)
	}
	reply := queue[0]
	if len(queue) > 1 {
		m.statuses[transactionID] = queue[1:]
	}
	return toResponse(reply)
}

func (m *MockTerminal) sale(kind string, req ecr.SaleRequest) (*ecr.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, TerminalCall{Kind: kind, Sale: req, SessionID: req.SessionID})

	if len(m.sales) == 0 {
		return nil, errors.New("no sale scripted")
	}
	reply := m.sales[0]
	m.sales = m.sales[1:]
	return toResponse(reply)
}

func toResponse(r Reply) (*ecr.Response, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return &ecr.Response{StatusCode: r.StatusCode, Body: []byte(r.Body)}, nil
}

// Calls returns every recorded call in order.
func (m *MockTerminal) Calls() []TerminalCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TerminalCall(nil), m.calls...)
}

// Sales returns the recorded sale calls in order.
func (m *MockTerminal) Sales() []TerminalCall {
	var sales []TerminalCall
	for _, c := range m.Calls() {
		if c.Kind != CallStatus {
			sales = append(sales, c)
		}
	}
	return sales
}

// ──────────────────────────────────────────────
// MOCK ARCHIVE
// ──────────────────────────────────────────────

// MockArchive is a mock implementation of SplitPaymentArchive.
type MockArchive struct {
	mu       sync.Mutex
	archived []*domain.SplitPaymentProgress

	ArchiveCallCount int32
	ArchiveError     error
}

// NewMockArchive creates a new mock archive.
func NewMockArchive() *MockArchive {
	return &MockArchive{}
}

func (m *MockArchive) Archive(ctx context.Context, progress *domain.SplitPaymentProgress) error {
	atomic.AddInt32(&m.ArchiveCallCount, 1)
	if m.ArchiveError != nil {
		return m.ArchiveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived = append(m.archived, progress.Clone())
	return nil
}

func (m *MockArchive) ListNeedingVoid(ctx context.Context, limit int) ([]*domain.SplitPaymentProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.SplitPaymentProgress
	for i := len(m.archived) - 1; i >= 0 && len(out) < limit; i-- {
		if m.archived[i].NeedsVoid() {
			out = append(out, m.archived[i].Clone())
		}
	}
	return out, nil
}

// Archived returns every archived split payment in order.
func (m *MockArchive) Archived() []*domain.SplitPaymentProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.SplitPaymentProgress(nil), m.archived...)
}

// ──────────────────────────────────────────────
// FAILING PROGRESS STORE
// ──────────────────────────────────────────────

// FailingStore wraps a ProgressStore and injects errors.
type FailingStore struct {
	repository.ProgressStore

	SaveError   error
	UpdateError error

	UpdateCallCount int32
}

func (s *FailingStore) Save(ctx context.Context, entry *repository.StoredProgress) error {
	if s.SaveError != nil {
		return s.SaveError
	}
	return s.ProgressStore.Save(ctx, entry)
}

func (s *FailingStore) Update(ctx context.Context, entry *repository.StoredProgress) error {
	atomic.AddInt32(&s.UpdateCallCount, 1)
	if s.UpdateError != nil {
		return s.UpdateError
	}
	return s.ProgressStore.Update(ctx, entry)
}
