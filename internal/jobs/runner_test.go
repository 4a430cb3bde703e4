package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/contextual-doc-translator/internal/errs"
	"github.com/MimeLyc/contextual-doc-translator/internal/provider"
	"github.com/MimeLyc/contextual-doc-translator/internal/ratelimit"
)

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return Result{}
	}
}

func TestRunner_Success(t *testing.T) {
	r := NewRunner(ratelimit.New(0))
	res := waitResult(t, r.Submit(context.Background(), Job{
		ID:         "j1",
		Ref:        "ch1",
		SourceText: "Hello",
		Glossary:   map[string]string{"Hello": "Bonjour"},
		Provider:   provider.NewMock(),
	}))

	require.True(t, res.OK())
	assert.Equal(t, "MOCK: Bonjour", res.Text)
	assert.Equal(t, "j1", res.JobID)
	assert.Equal(t, "ch1", res.Ref)
}

func TestRunner_ProviderErrorBecomesFailure(t *testing.T) {
	m := provider.NewMock()
	m.Fn = func(context.Context, string, string, map[string]string) (string, error) {
		return "", &provider.ProviderError{Provider: "mock", Message: "bad key"}
	}

	res := waitResult(t, NewRunner(nil).Submit(context.Background(), Job{Provider: m}))
	require.False(t, res.OK())
	assert.Empty(t, res.Text)
	assert.True(t, errs.IsErrorType(res.Err, errs.ErrProvider))

	var perr *provider.ProviderError
	require.ErrorAs(t, res.Err, &perr)
	assert.Equal(t, "bad key", perr.Message)
}

func TestRunner_UntypedErrorIsProviderFailure(t *testing.T) {
	m := provider.NewMock()
	m.Fn = func(context.Context, string, string, map[string]string) (string, error) {
		return "", errors.New("socket closed")
	}
	res := waitResult(t, NewRunner(nil).Submit(context.Background(), Job{Provider: m}))
	assert.True(t, errs.IsErrorType(res.Err, errs.ErrProvider))
}

func TestRunner_PanicIsCaptured(t *testing.T) {
	m := provider.NewMock()
	m.Fn = func(context.Context, string, string, map[string]string) (string, error) {
		panic("provider exploded")
	}
	res := waitResult(t, NewRunner(nil).Submit(context.Background(), Job{Provider: m}))
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "provider exploded")
}

func TestRunner_MissingProviderIsConfigError(t *testing.T) {
	res := waitResult(t, NewRunner(nil).Submit(context.Background(), Job{SourceText: "x"}))
	assert.True(t, errs.IsErrorType(res.Err, errs.ErrConfig))
}

func TestRunner_DeliversExactlyOnce(t *testing.T) {
	r := NewRunner(nil)
	var (
		mu    sync.Mutex
		count int
	)
	done := make(chan struct{})
	r.Run(context.Background(), Job{Provider: provider.NewMock()}, func(Result) {
		mu.Lock()
		count++
		mu.Unlock()
		close(done)
	})
	<-done
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestRunner_SharedLimiterSerializesAcrossRunners(t *testing.T) {
	const interval = 50 * time.Millisecond
	limiter := ratelimit.New(float64(time.Second / interval))

	var (
		mu    sync.Mutex
		calls []time.Time
	)
	m := provider.NewMock()
	m.Fn = func(_ context.Context, text string, _ string, _ map[string]string) (string, error) {
		mu.Lock()
		calls = append(calls, time.Now())
		mu.Unlock()
		return text, nil
	}

	a, b := NewRunner(limiter), NewRunner(limiter)
	var chans []<-chan Result
	for i := 0; i < 2; i++ {
		chans = append(chans, a.Submit(context.Background(), Job{Provider: m}))
		chans = append(chans, b.Submit(context.Background(), Job{Provider: m}))
	}
	for _, ch := range chans {
		require.True(t, waitResult(t, ch).OK())
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(calls, func(i, j int) bool { return calls[i].Before(calls[j]) })
	require.Len(t, calls, 4)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), interval-15*time.Millisecond)
	}
}
