package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"watchtower/internal/engine/alert"
	mockdispatch "watchtower/internal/engine/mock/dispatch"
)

func testMessage() alert.Message {
	return alert.Message{
		Key:           "http:example.com",
		Severity:      alert.SeverityWarning,
		Text:          "[warning] http:example.com failing",
		CorrelationID: "inc-1",
		Timestamp:     time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func fastConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDispatcher_ChannelIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broken := mockdispatch.NewMockChannel(ctrl)
	broken.EXPECT().Name().Return("broken").AnyTimes()
	broken.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(&RetryableError{Err: errors.New("connection reset")}).Times(3)

	healthy := mockdispatch.NewMockChannel(ctrl)
	healthy.EXPECT().Name().Return("healthy").AnyTimes()
	healthy.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	d := NewDispatcher(fastConfig(), zap.NewNop())
	results := d.Dispatch(context.Background(), testMessage(), []Channel{broken, healthy})

	require.Len(t, results, 2)
	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Channel] = r
	}
	assert.False(t, byName["broken"].Delivered)
	assert.Equal(t, 3, byName["broken"].Attempts)
	assert.Error(t, byName["broken"].Err)

	assert.True(t, byName["healthy"].Delivered)
	assert.Equal(t, 1, byName["healthy"].Attempts)
	assert.NoError(t, byName["healthy"].Err)
}

func TestDispatcher_TerminalErrorIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ch := mockdispatch.NewMockChannel(ctrl)
	ch.EXPECT().Name().Return("webhook").AnyTimes()
	ch.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("status 400")).Times(1)

	d := NewDispatcher(fastConfig(), zap.NewNop())
	results := d.Dispatch(context.Background(), testMessage(), []Channel{ch})

	require.Len(t, results, 1)
	assert.False(t, results[0].Delivered)
	assert.Equal(t, 1, results[0].Attempts)
}

func TestDispatcher_RetryableErrorSucceedsOnSecondAttempt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ch := mockdispatch.NewMockChannel(ctrl)
	ch.EXPECT().Name().Return("webhook").AnyTimes()
	gomock.InOrder(
		ch.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(&RetryableError{Err: errors.New("status 503")}),
		ch.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil),
	)

	d := NewDispatcher(fastConfig(), zap.NewNop())
	results := d.Dispatch(context.Background(), testMessage(), []Channel{ch})

	require.Len(t, results, 1)
	assert.True(t, results[0].Delivered)
	assert.Equal(t, 2, results[0].Attempts)
}

func TestDispatcher_HonorsRetryAfter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	retryAfter := 2 * time.Second
	ch := mockdispatch.NewMockChannel(ctrl)
	ch.EXPECT().Name().Return("webhook").AnyTimes()
	gomock.InOrder(
		ch.EXPECT().Send(gomock.Any(), gomock.Any()).
			Return(&RetryableError{RetryAfter: retryAfter, Err: errors.New("rate limited")}),
		ch.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil),
	)

	d := NewDispatcher(fastConfig(), zap.NewNop())
	start := time.Now()
	results := d.Dispatch(context.Background(), testMessage(), []Channel{ch})
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.True(t, results[0].Delivered)
	assert.Equal(t, 2, results[0].Attempts)
	assert.GreaterOrEqual(t, elapsed, retryAfter,
		"second attempt must wait for the server-specified delay")
}

func TestDispatcher_CancelledContextStopsRetrying(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ch := mockdispatch.NewMockChannel(ctrl)
	ch.EXPECT().Name().Return("webhook").AnyTimes()
	ch.EXPECT().Send(gomock.Any(), gomock.Any()).
		Return(&RetryableError{RetryAfter: time.Minute, Err: errors.New("rate limited")})

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(fastConfig(), zap.NewNop())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	results := d.Dispatch(ctx, testMessage(), []Channel{ch})

	require.Len(t, results, 1)
	assert.False(t, results[0].Delivered)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDispatcher_BackoffIsCapped(t *testing.T) {
	d := NewDispatcher(Config{MaxAttempts: 5, BaseDelay: 10 * time.Second, MaxDelay: 30 * time.Second}, zap.NewNop())
	for attempt := 1; attempt <= 5; attempt++ {
		assert.LessOrEqual(t, d.backoff(attempt), 30*time.Second)
	}
}
