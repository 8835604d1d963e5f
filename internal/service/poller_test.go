package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitpay/internal/clock"
	"splitpay/internal/service"
	"splitpay/internal/tests"
)

var pollStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newPoller(t *testing.T) (*service.StatusPoller, *tests.MockTerminal, *clock.Fake) {
	t.Helper()
	terminal := tests.NewMockTerminal()
	clk := clock.NewFake(pollStart)
	return service.NewStatusPoller(terminal, clk), terminal, clk
}

var fastPolicy = service.RetryPolicy{Interval: 500 * time.Millisecond, MaxAttempts: 3}

func TestPoll_ApprovedAfterPending(t *testing.T) {
	poller, terminal, clk := newPoller(t)
	terminal.QueueStatus("tx-1", tests.Status("PENDING"), tests.Status("PROCESSING"), tests.Status("APPROVED"))

	result := poller.Poll(context.Background(), "tx-1", service.SessionContext{SessionID: "s-1"}, fastPolicy)

	assert.Equal(t, service.PollApproved, result.Outcome)
	assert.Equal(t, 3, result.Attempts)
	assert.JSONEq(t, `{"status":"APPROVED"}`, string(result.Details))
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, clk.Sleeps())

	for _, call := range terminal.Calls() {
		assert.Equal(t, "s-1", call.SessionID)
	}
}

func TestPoll_Rejected(t *testing.T) {
	poller, terminal, _ := newPoller(t)
	terminal.QueueStatus("tx-1", tests.Reply{StatusCode: 200, Body: `{"status":"DECLINED","message":"Insufficient funds"}`})

	result := poller.Poll(context.Background(), "tx-1", service.SessionContext{}, fastPolicy)

	assert.Equal(t, service.PollRejected, result.Outcome)
	assert.Equal(t, "Insufficient funds", result.Message)
	assert.Equal(t, 1, result.Attempts)
}

func TestPoll_TimeoutWhenAlwaysPending(t *testing.T) {
	poller, terminal, clk := newPoller(t)
	terminal.QueueStatus("tx-1", tests.Reply{StatusCode: 200, Body: `{"approval_code":"09"}`})

	result := poller.Poll(context.Background(), "tx-1", service.SessionContext{}, fastPolicy)

	assert.Equal(t, service.PollTimeout, result.Outcome)
	assert.Equal(t, "polling exceeded 3 attempts", result.Message)
	assert.Len(t, terminal.Calls(), 3)
	assert.Equal(t, pollStart.Add(time.Second), clk.Now())
}

func TestPoll_ErrorWhenLastAttemptFails(t *testing.T) {
	poller, terminal, _ := newPoller(t)
	terminal.QueueStatus("tx-1", tests.Status("PENDING"), tests.Reply{Err: tests.ErrTransport})

	result := poller.Poll(context.Background(), "tx-1", service.SessionContext{}, fastPolicy)

	assert.Equal(t, service.PollError, result.Outcome)
	assert.True(t, strings.HasPrefix(result.Message, "status request failed: "), result.Message)
	assert.Contains(t, result.Message, tests.ErrTransport.Error())
}

func TestPoll_TransportErrorIsRetried(t *testing.T) {
	poller, terminal, _ := newPoller(t)
	terminal.QueueStatus("tx-1",
		tests.Reply{Err: tests.ErrTransport},
		tests.Reply{StatusCode: 500, Body: `garbage`},
		tests.Reply{StatusCode: 200, Body: `{"transaction":{"approval_code":"00"}}`},
	)

	result := poller.Poll(context.Background(), "tx-1", service.SessionContext{}, fastPolicy)

	require.Equal(t, service.PollApproved, result.Outcome)
	assert.Equal(t, 3, result.Attempts)
}

func TestPoll_InterruptedSleep(t *testing.T) {
	poller, terminal, _ := newPoller(t)
	terminal.QueueStatus("tx-1", tests.Status("PENDING"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := poller.Poll(ctx, "tx-1", service.SessionContext{}, fastPolicy)

	assert.Equal(t, service.PollError, result.Outcome)
	assert.Equal(t, "polling interrupted: context canceled", result.Message)
	assert.Equal(t, 1, result.Attempts)
}

func TestRetryPolicy_WithDefaults(t *testing.T) {
	p := service.RetryPolicy{}.WithDefaults()
	assert.Equal(t, service.DefaultRetryPolicy, p)

	p = service.RetryPolicy{Interval: time.Second}.WithDefaults()
	assert.Equal(t, time.Second, p.Interval)
	assert.Equal(t, service.DefaultRetryPolicy.MaxAttempts, p.MaxAttempts)
}
