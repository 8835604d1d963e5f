package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"

	"splitpay/internal/clock"
	"splitpay/internal/domain"
	"splitpay/internal/repository"
)

const (
	defaultSessionLockSlack = time.Minute
	defaultReconcileLimit   = 100
)

// SplitPaymentService drives split payments part by part against one
// terminal session.
type SplitPaymentService struct {
	store     repository.ProgressStore
	initiator *PartInitiator
	poller    *StatusPoller
	clock     clock.Clock

	locker        repository.SessionLocker
	archive       repository.SplitPaymentArchive
	notifications *NotificationService

	terminal SessionContext
	policy   RetryPolicy
	lockTTL  time.Duration
	newID    func() string
}

// SplitPaymentOption configures a SplitPaymentService.
type SplitPaymentOption func(*SplitPaymentService)

// WithSessionLocker rejects a split payment while another runs on the same session.
func WithSessionLocker(locker repository.SessionLocker) SplitPaymentOption {
	return func(s *SplitPaymentService) { s.locker = locker }
}

// WithArchive records finished split payments for reconciliation.
func WithArchive(archive repository.SplitPaymentArchive) SplitPaymentOption {
	return func(s *SplitPaymentService) { s.archive = archive }
}

// WithNotifications reports every transition.
func WithNotifications(n *NotificationService) SplitPaymentOption {
	return func(s *SplitPaymentService) { s.notifications = n }
}

// WithTerminalDefaults sets the terminal identity used when a request does not carry one.
func WithTerminalDefaults(terminal SessionContext) SplitPaymentOption {
	return func(s *SplitPaymentService) { s.terminal = terminal }
}

// WithRetryPolicy overrides the default polling policy.
func WithRetryPolicy(policy RetryPolicy) SplitPaymentOption {
	return func(s *SplitPaymentService) { s.policy = policy.WithDefaults() }
}

// WithSessionLockTTL sets the minimum lifetime of a session lock. The lock
// always outlives the longest possible polling of every part.
func WithSessionLockTTL(ttl time.Duration) SplitPaymentOption {
	return func(s *SplitPaymentService) { s.lockTTL = ttl }
}

// WithIDGenerator overrides how split payment ids are generated.
func WithIDGenerator(fn func() string) SplitPaymentOption {
	return func(s *SplitPaymentService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewSplitPaymentService creates a new SplitPaymentService.
func NewSplitPaymentService(
	store repository.ProgressStore,
	initiator *PartInitiator,
	poller *StatusPoller,
	clk clock.Clock,
	opts ...SplitPaymentOption,
) *SplitPaymentService {
	s := &SplitPaymentService{
		store:     store,
		initiator: initiator,
		poller:    poller,
		clock:     clk,
		policy:    DefaultRetryPolicy,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SplitPaymentRequest contains the parameters for a split payment.
type SplitPaymentRequest struct {
	Total              domain.TaxAmount
	Parts              []domain.SplitPart
	Reference          int64
	PrecedingReference int64
	SessionID          string

	// Zero values fall back to the service's retry policy.
	PollInterval    time.Duration
	PollMaxAttempts int

	// Empty values fall back to the service's terminal defaults.
	TerminalID   string
	StationID    string
	CashierID    string
	PrintReceipt *bool
}

// Validate checks the request before any terminal transaction starts.
func (r SplitPaymentRequest) Validate() error {
	if r.SessionID == "" {
		return invalid(ErrInvalidSessionID, "session_id is required")
	}
	if r.Reference <= 0 {
		return invalid(ErrInvalidReference, "reference must be positive, got %d", r.Reference)
	}
	if r.PrecedingReference < 0 {
		return invalid(ErrInvalidReference, "preceding_reference must not be negative, got %d", r.PrecedingReference)
	}
	if err := r.Total.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	return ValidateParts(r.Parts)
}

// Process runs a split payment to its end and returns the final progress.
// It fails only when the request is rejected before any part starts; vendor
// failures are recorded on the returned progress instead.
func (s *SplitPaymentService) Process(ctx context.Context, req SplitPaymentRequest) (*domain.SplitPaymentProgress, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// A terminal interaction in progress must not be abandoned because the
	// caller went away.
	ctx = context.WithoutCancel(ctx)

	policy := s.policyFor(req)
	session := s.sessionFor(req)

	amounts := make([]domain.TaxAmount, len(req.Parts))
	for i, part := range req.Parts {
		amounts[i] = domain.Allocate(req.Total, part.Percentage)
	}

	if s.locker != nil {
		ttl := time.Duration(len(req.Parts)*policy.MaxAttempts)*policy.Interval + defaultSessionLockSlack
		if ttl < s.lockTTL {
			ttl = s.lockTTL
		}
		locked, err := s.locker.Acquire(ctx, req.SessionID, ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if !locked {
			return nil, ErrSessionBusy
		}
		defer func() {
			if err := s.locker.Release(ctx, req.SessionID); err != nil {
				log.Printf("split session=%s release lock: %v", req.SessionID, err)
			}
		}()
	}

	progress := domain.NewSplitPaymentProgress(s.newID(), req.Reference, req.Total.Clone(), req.Parts, amounts, s.clock.Now())
	entry := &repository.StoredProgress{Progress: progress, SessionID: req.SessionID}
	if err := s.store.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("save split payment: %w", err)
	}

	if s.notifications != nil {
		_ = s.notifications.NotifySplitStarted(ctx, progress)
	}

	s.run(ctx, entry, req, session, policy)
	s.finish(ctx, progress)

	return progress.Clone(), nil
}

// run drives every part in order and stops at the first part that is not
// approved. The reference chain advances only past approved parts.
func (s *SplitPaymentService) run(ctx context.Context, entry *repository.StoredProgress, req SplitPaymentRequest, session SessionContext, policy RetryPolicy) {
	progress := entry.Progress
	reference, preceding := req.Reference, req.PrecedingReference

	for i := range progress.Parts {
		segment := newrelic.FromContext(ctx).StartSegment(fmt.Sprintf("SplitPayment/part/%d", i+1))
		approved := s.runPart(ctx, entry, i, reference, preceding, session, policy)
		segment.End()
		if !approved {
			return
		}
		preceding = reference
		reference++
	}

	if err := progress.Complete(s.clock.Now()); err != nil {
		log.Printf("split=%s complete: %v", progress.ID, err)
		return
	}
	s.persist(ctx, entry)
}

func (s *SplitPaymentService) runPart(
	ctx context.Context,
	entry *repository.StoredProgress,
	i int,
	reference, preceding int64,
	session SessionContext,
	policy RetryPolicy,
) bool {
	progress := entry.Progress

	if err := progress.StartPart(i, reference, preceding, s.clock.Now()); err != nil {
		log.Printf("split=%s part=%d start: %v", progress.ID, i, err)
		return false
	}
	s.persist(ctx, entry)
	if s.notifications != nil {
		_ = s.notifications.NotifyPartStarted(ctx, progress, i)
	}

	part := progress.Parts[i]
	outcome := s.initiator.Initiate(ctx, PartRequest{
		Method:             part.Method,
		Amount:             part.Amount,
		Reference:          reference,
		PrecedingReference: preceding,
		Session:            session,
	})
	if !outcome.Success {
		s.failPart(ctx, entry, i, domain.PartStateError, "initiation failed: "+outcome.Error)
		return false
	}

	if err := progress.SetTransactionID(i, outcome.TransactionID, s.clock.Now()); err != nil {
		log.Printf("split=%s part=%d set transaction: %v", progress.ID, i, err)
	}
	s.persist(ctx, entry)

	result := s.poller.Poll(ctx, outcome.TransactionID, session, policy)
	switch result.Outcome {
	case PollApproved:
		if err := progress.ApprovePart(i, result.Details, s.clock.Now()); err != nil {
			log.Printf("split=%s part=%d approve: %v", progress.ID, i, err)
			return false
		}
		s.persist(ctx, entry)
		if s.notifications != nil {
			_ = s.notifications.NotifyPartApproved(ctx, progress, i)
		}
		return true
	case PollRejected:
		s.failPart(ctx, entry, i, domain.PartStateRejected, "rejected: "+result.Message)
	case PollTimeout:
		s.failPart(ctx, entry, i, domain.PartStateError, "timeout: "+result.Message)
	case PollError:
		s.failPart(ctx, entry, i, domain.PartStateError, "error: "+result.Message)
	default:
		s.failPart(ctx, entry, i, domain.PartStateError, fmt.Sprintf("error: unknown poll outcome %q", result.Outcome))
	}
	return false
}

func (s *SplitPaymentService) failPart(ctx context.Context, entry *repository.StoredProgress, i int, state domain.PartState, message string) {
	if err := entry.Progress.FailPart(i, state, message, s.clock.Now()); err != nil {
		log.Printf("split=%s part=%d fail: %v", entry.Progress.ID, i, err)
		return
	}
	s.persist(ctx, entry)
	if s.notifications != nil {
		_ = s.notifications.NotifyPartFailed(ctx, entry.Progress, i)
	}
}

// persist writes the current progress. A store failure is logged and does not
// stop the sequence: the terminal, not the store, owns the money movement.
func (s *SplitPaymentService) persist(ctx context.Context, entry *repository.StoredProgress) {
	if err := s.store.Update(ctx, entry); err != nil {
		log.Printf("split=%s persist progress: %v", entry.Progress.ID, err)
	}
}

func (s *SplitPaymentService) finish(ctx context.Context, progress *domain.SplitPaymentProgress) {
	if s.notifications != nil {
		_ = s.notifications.NotifySplitFinished(ctx, progress)
	}
	if s.archive != nil {
		if err := s.archive.Archive(ctx, progress); err != nil {
			log.Printf("split=%s archive: %v", progress.ID, err)
		}
	}
}

func (s *SplitPaymentService) policyFor(req SplitPaymentRequest) RetryPolicy {
	policy := s.policy
	if req.PollInterval > 0 {
		policy.Interval = req.PollInterval
	}
	if req.PollMaxAttempts > 0 {
		policy.MaxAttempts = req.PollMaxAttempts
	}
	return policy.WithDefaults()
}

func (s *SplitPaymentService) sessionFor(req SplitPaymentRequest) SessionContext {
	session := s.terminal
	session.SessionID = req.SessionID
	if req.TerminalID != "" {
		session.TerminalID = req.TerminalID
	}
	if req.StationID != "" {
		session.StationID = req.StationID
	}
	if req.CashierID != "" {
		session.CashierID = req.CashierID
	}
	if req.PrintReceipt != nil {
		session.PrintReceipt = *req.PrintReceipt
	}
	return session
}

// GetProgress returns the current progress of a split payment. A non-empty
// sessionID must match the session the split payment runs on.
func (s *SplitPaymentService) GetProgress(ctx context.Context, splitID, sessionID string) (*domain.SplitPaymentProgress, error) {
	if splitID == "" {
		return nil, ErrInvalidSplitID
	}

	entry, err := s.store.GetStored(ctx, splitID)
	if err != nil {
		return nil, err
	}
	if sessionID != "" && entry.SessionID != sessionID {
		return nil, repository.ErrNotFound
	}
	return entry.Progress, nil
}

// Delete removes a finished split payment from the progress store.
func (s *SplitPaymentService) Delete(ctx context.Context, splitID string) error {
	if splitID == "" {
		return ErrInvalidSplitID
	}

	progress, err := s.store.Get(ctx, splitID)
	if err != nil {
		return err
	}
	if !progress.Status.Terminal() {
		return ErrSplitInProgress
	}
	return s.store.Delete(ctx, splitID)
}

// ListNeedingVoid returns archived failed split payments whose approved parts
// must be voided by hand.
func (s *SplitPaymentService) ListNeedingVoid(ctx context.Context, limit int) ([]*domain.SplitPaymentProgress, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	if limit <= 0 || limit > defaultReconcileLimit {
		limit = defaultReconcileLimit
	}
	return s.archive.ListNeedingVoid(ctx, limit)
}
