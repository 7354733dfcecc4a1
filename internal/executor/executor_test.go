package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierctl/tierctl/internal/util/retry"
)

func succeedWith(outputs map[string]string) Action {
	return func(context.Context, map[string]string) (map[string]string, error) {
		return outputs, nil
	}
}

func TestRun_Success(t *testing.T) {
	t.Parallel()
	e := New(nil, nil)

	res := e.Run(context.Background(), BootstrapTask{
		NodeID:  "db",
		Payload: map[string]string{"tier": "data"},
		Action:  succeedWith(map[string]string{"principal_ref": "abc123"}),
	})

	require.NoError(t, res.Err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, "db", res.NodeID)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, map[string]string{"principal_ref": "abc123"}, res.Outputs)
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()
	e := New(nil, nil)
	task := BootstrapTask{
		NodeID: "db",
		Action: succeedWith(map[string]string{"principal_ref": "abc123"}),
	}

	// Re-running an already-converged task yields the same outputs.
	first := e.Run(context.Background(), task)
	second := e.Run(context.Background(), task)

	require.NoError(t, first.Err)
	require.NoError(t, second.Err)
	assert.Equal(t, first.Outputs, second.Outputs)
}

func TestRun_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	e := New(nil, nil)

	calls := 0
	res := e.Run(context.Background(), BootstrapTask{
		NodeID: "app",
		Retry:  retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond},
		Action: func(context.Context, map[string]string) (map[string]string, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("transient")
			}
			return map[string]string{"ok": "yes"}, nil
		},
	})

	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Attempts)
}

func TestRun_ActionFailureAfterExhaustion(t *testing.T) {
	t.Parallel()
	e := New(nil, nil)

	res := e.Run(context.Background(), BootstrapTask{
		NodeID: "app",
		Retry:  retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		Action: func(context.Context, map[string]string) (map[string]string, error) {
			return nil, errors.New("persistent")
		},
	})

	require.Error(t, res.Err)
	assert.False(t, res.Succeeded())

	var actionErr *ActionFailureError
	require.True(t, errors.As(res.Err, &actionErr))
	assert.Equal(t, 3, actionErr.Attempts)
	assert.Equal(t, "app", actionErr.NodeID)
}

func TestRun_LockHeldThenReleased(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	locks := func(_ context.Context, resource string) (bool, error) {
		require.Equal(t, "pkg-lock", resource)
		// Held for the first 3 checks, then released.
		return polls.Add(1) > 3, nil
	}
	e := New(locks, nil)

	start := time.Now()
	res := e.Run(context.Background(), BootstrapTask{
		NodeID:            "worker",
		ContendedResource: "pkg-lock",
		MaxWait:           time.Second,
		PollInterval:      20 * time.Millisecond,
		Action:            succeedWith(nil),
	})
	elapsed := time.Since(start)

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Attempts, "action should succeed on first attempt after the wait")
	assert.GreaterOrEqual(t, int(polls.Load()), 4)
	// Roughly three polling intervals of waiting, with generous slack.
	assert.Less(t, elapsed, 500*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestRun_LockTimeout(t *testing.T) {
	t.Parallel()

	locks := func(context.Context, string) (bool, error) {
		return false, nil // never released
	}
	e := New(locks, nil)

	actionCalled := false
	res := e.Run(context.Background(), BootstrapTask{
		NodeID:            "worker",
		ContendedResource: "pkg-lock",
		MaxWait:           60 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
		Action: func(context.Context, map[string]string) (map[string]string, error) {
			actionCalled = true
			return nil, nil
		},
	})

	require.Error(t, res.Err)
	assert.False(t, actionCalled, "must never proceed past a held lock")

	var lockErr *LockTimeoutError
	require.True(t, errors.As(res.Err, &lockErr))
	assert.Equal(t, "pkg-lock", lockErr.Resource)
	assert.Equal(t, 0, res.Attempts)
}

func TestRun_ProbeErrorsTreatedAsHeld(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	locks := func(context.Context, string) (bool, error) {
		if polls.Add(1) < 3 {
			return false, errors.New("probe unavailable")
		}
		return true, nil
	}
	e := New(locks, nil)

	res := e.Run(context.Background(), BootstrapTask{
		NodeID:            "worker",
		ContendedResource: "pkg-lock",
		MaxWait:           time.Second,
		PollInterval:      10 * time.Millisecond,
		Action:            succeedWith(nil),
	})

	require.NoError(t, res.Err)
}

func TestRun_CancelledDuringLockWait(t *testing.T) {
	t.Parallel()

	locks := func(context.Context, string) (bool, error) {
		return false, nil
	}
	e := New(locks, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	res := e.Run(ctx, BootstrapTask{
		NodeID:            "worker",
		ContendedResource: "pkg-lock",
		MaxWait:           5 * time.Second,
		PollInterval:      10 * time.Millisecond,
		Action:            succeedWith(nil),
	})

	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, context.Canceled))

	var lockErr *LockTimeoutError
	assert.False(t, errors.As(res.Err, &lockErr), "cancellation is not a lock timeout")
}

func TestRun_NoProbeMeansNoWait(t *testing.T) {
	t.Parallel()
	e := New(nil, nil)

	start := time.Now()
	res := e.Run(context.Background(), BootstrapTask{
		NodeID:            "worker",
		ContendedResource: "pkg-lock",
		MaxWait:           time.Second,
		Action:            succeedWith(nil),
	})

	require.NoError(t, res.Err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}
