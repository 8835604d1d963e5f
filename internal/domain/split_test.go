package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var splitNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTwoPartProgress() *SplitPaymentProgress {
	total := TaxAmount{Total: dec("100.00")}
	parts := []SplitPart{
		{Method: PaymentMethodCard, Percentage: dec("50")},
		{Method: PaymentMethodMobileWallet, Percentage: dec("50")},
	}
	amounts := []TaxAmount{Allocate(total, parts[0].Percentage), Allocate(total, parts[1].Percentage)}
	return NewSplitPaymentProgress("split-1", 100, total, parts, amounts, splitNow)
}

func TestSplitPaymentProgress_StartsProcessingWithPendingParts(t *testing.T) {
	p := newTwoPartProgress()

	assert.Equal(t, SplitStatusProcessing, p.Status)
	for _, part := range p.Parts {
		assert.Equal(t, PartStatePending, part.Status)
		assert.Nil(t, part.StartedAt)
	}
}

func TestSplitPaymentProgress_HappyPath(t *testing.T) {
	p := newTwoPartProgress()

	require.NoError(t, p.StartPart(0, 100, 99, splitNow))
	require.NoError(t, p.SetTransactionID(0, "tx-1", splitNow))
	require.NoError(t, p.ApprovePart(0, json.RawMessage(`{"status":"APPROVED"}`), splitNow))
	require.NoError(t, p.StartPart(1, 101, 100, splitNow))
	require.NoError(t, p.SetTransactionID(1, "tx-2", splitNow))
	require.NoError(t, p.ApprovePart(1, nil, splitNow))
	require.NoError(t, p.Complete(splitNow))

	assert.Equal(t, SplitStatusCompleted, p.Status)
	assert.Equal(t, "completed: 2 of 2 parts approved", p.Message)
	assert.Len(t, p.ApprovedParts(), 2)
	assert.False(t, p.NeedsVoid())
}

func TestSplitPaymentProgress_FailLeavesLaterPartsPending(t *testing.T) {
	p := newTwoPartProgress()

	require.NoError(t, p.StartPart(0, 100, 99, splitNow))
	require.NoError(t, p.FailPart(0, PartStateRejected, "rejected: insufficient funds", splitNow))

	assert.Equal(t, SplitStatusFailed, p.Status)
	assert.Equal(t, "failed at part 1 of 2: rejected: insufficient funds", p.Message)
	assert.Equal(t, PartStatePending, p.Parts[1].Status)

	err := p.StartPart(1, 101, 100, splitNow)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestSplitPaymentProgress_RejectsBackwardTransitions(t *testing.T) {
	p := newTwoPartProgress()

	assert.True(t, errors.Is(p.ApprovePart(0, nil, splitNow), ErrInvalidTransition), "approve before start")

	require.NoError(t, p.StartPart(0, 100, 99, splitNow))
	require.NoError(t, p.ApprovePart(0, nil, splitNow))

	assert.True(t, errors.Is(p.StartPart(0, 100, 99, splitNow), ErrInvalidTransition), "restart approved part")
	assert.True(t, errors.Is(p.FailPart(0, PartStateError, "x", splitNow), ErrInvalidTransition), "fail approved part")
	assert.True(t, errors.Is(p.FailPart(1, PartStateApproved, "x", splitNow), ErrInvalidTransition), "approved is not a failure")
	assert.True(t, errors.Is(p.Complete(splitNow), ErrInvalidTransition), "complete with pending part")
	assert.True(t, errors.Is(p.StartPart(5, 1, 0, splitNow), ErrPartIndexOutOfRange))
}

func TestSplitPaymentProgress_NeedsVoid(t *testing.T) {
	p := newTwoPartProgress()

	require.NoError(t, p.StartPart(0, 100, 99, splitNow))
	require.NoError(t, p.ApprovePart(0, nil, splitNow))
	require.NoError(t, p.StartPart(1, 101, 100, splitNow))
	require.NoError(t, p.FailPart(1, PartStateError, "error: timeout", splitNow))

	assert.True(t, p.NeedsVoid())
}

func TestSplitPaymentProgress_CloneIsDeep(t *testing.T) {
	p := newTwoPartProgress()
	require.NoError(t, p.StartPart(0, 100, 99, splitNow))

	c := p.Clone()
	c.Parts[0].Status = PartStateError
	*c.Parts[0].StartedAt = splitNow.Add(time.Hour)

	assert.Equal(t, PartStateProcessing, p.Parts[0].Status)
	assert.Equal(t, splitNow, *p.Parts[0].StartedAt)
}

func TestSplitPaymentProgress_JSONKeepsZeroPrecedingReference(t *testing.T) {
	p := newTwoPartProgress()
	require.NoError(t, p.StartPart(0, 1, 0, splitNow))

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded struct {
		Parts []map[string]json.RawMessage `json:"parts"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Parts, 2)

	assert.JSONEq(t, `1`, string(decoded.Parts[0]["reference"]))
	assert.JSONEq(t, `0`, string(decoded.Parts[0]["preceding_reference"]))
	assert.Contains(t, decoded.Parts[1], "preceding_reference")
}
