package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/product_radar/pkg/backend"
	"github.com/iWorld-y/product_radar/pkg/model"
)

// fakeAnalyzer 按产品 ID 预设行为，记录每个产品的调用次数
type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    map[int]int
	behavior func(id, call int) error
	block    chan struct{} // 非 nil 时首次调用前阻塞
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Analyze(ctx context.Context, p model.ProductRecord) (*model.ProductReport, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls[p.ID]++
	call := f.calls[p.ID]
	f.mu.Unlock()

	if err := f.behavior(p.ID, call); err != nil {
		return nil, err
	}
	return &model.ProductReport{Overview: "概述", Rating: 7}, nil
}

func (f *fakeAnalyzer) callCount(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func newFake(behavior func(id, call int) error) *fakeAnalyzer {
	return &fakeAnalyzer{calls: make(map[int]int), behavior: behavior}
}

func makeProducts(n int) []model.ProductRecord {
	products := make([]model.ProductRecord, 0, n)
	for i := 1; i <= n; i++ {
		products = append(products, model.ProductRecord{ID: i, Rank: i, Name: "tool", Language: model.LanguageCN})
	}
	return products
}

func collect(d *Dispatcher, products []model.ProductRecord) map[int]Outcome {
	var mu sync.Mutex
	outcomes := make(map[int]Outcome)
	d.Run(context.Background(), products, nil, func(o Outcome) {
		mu.Lock()
		outcomes[o.Product.ID] = o
		mu.Unlock()
	})
	return outcomes
}

func TestRun_AllSucceed(t *testing.T) {
	fake := newFake(func(id, call int) error { return nil })
	d := New(fake, Options{Width: 4, MaxRetries: 2, BaseDelay: time.Millisecond})

	outcomes := collect(d, makeProducts(10))

	require.Len(t, outcomes, 10)
	for id, o := range outcomes {
		require.NoError(t, o.Err, "id=%d", id)
		assert.Equal(t, 0, o.Result.Retries)
		assert.Equal(t, "fake", o.Result.Backend)
	}
}

func TestRun_TransientFailuresThenSuccess(t *testing.T) {
	// 前两次返回可重试错误，第三次成功
	fake := newFake(func(id, call int) error {
		if call <= 2 {
			return &backend.UnavailableError{Backend: "fake", Err: errors.New("status 429")}
		}
		return nil
	})
	d := New(fake, Options{Width: 1, MaxRetries: 3, BaseDelay: time.Millisecond})

	outcomes := collect(d, makeProducts(1))

	o := outcomes[1]
	require.NoError(t, o.Err)
	assert.Equal(t, 2, o.Result.Retries)
	assert.Equal(t, 3, fake.callCount(1))
}

func TestRun_RetriesExhausted(t *testing.T) {
	fake := newFake(func(id, call int) error {
		return &backend.UnavailableError{Backend: "fake", Err: errors.New("connection refused")}
	})
	d := New(fake, Options{Width: 1, MaxRetries: 2, BaseDelay: time.Millisecond})

	outcomes := collect(d, makeProducts(1))

	o := outcomes[1]
	require.Error(t, o.Err)
	assert.Nil(t, o.Result)
	assert.False(t, o.Canceled)
	// 首次尝试 + MaxRetries 次重试
	assert.Equal(t, 3, fake.callCount(1))
}

func TestRun_NonRetriableFailsImmediately(t *testing.T) {
	fake := newFake(func(id, call int) error {
		return &backend.RejectedError{Backend: "fake", Err: errors.New("status 401")}
	})
	d := New(fake, Options{Width: 1, MaxRetries: 5, BaseDelay: time.Millisecond})

	outcomes := collect(d, makeProducts(1))

	o := outcomes[1]
	require.Error(t, o.Err)
	var re *backend.RejectedError
	assert.ErrorAs(t, o.Err, &re)
	// 不可重试错误只尝试一次
	assert.Equal(t, 1, fake.callCount(1))
}

func TestRun_CancelStopsFeeding(t *testing.T) {
	fake := newFake(func(id, call int) error { return nil })
	fake.block = make(chan struct{})
	d := New(fake, Options{Width: 1, MaxRetries: 0, BaseDelay: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var outcomes []Outcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx, makeProducts(20), nil, func(o Outcome) {
			mu.Lock()
			outcomes = append(outcomes, o)
			mu.Unlock()
		})
	}()

	// 第一个任务在途时取消，后续任务不再投递
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(fake.block)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("调度器未在取消后退出")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Less(t, len(outcomes), 20)
	// 在途任务仍然完成并上报
	require.NotEmpty(t, outcomes)
	assert.NoError(t, outcomes[0].Err)
}

func TestRun_CancelDuringBackoff(t *testing.T) {
	fake := newFake(func(id, call int) error {
		return &backend.UnavailableError{Backend: "fake", Err: errors.New("status 503")}
	})
	// 超长退避，取消应立刻打断等待
	d := New(fake, Options{Width: 1, MaxRetries: 3, BaseDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	var outcomes []Outcome
	start := time.Now()
	d.Run(ctx, makeProducts(1), nil, func(o Outcome) {
		outcomes = append(outcomes, o)
	})

	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Canceled)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0

	fake := newFake(func(id, call int) error {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	})
	d := New(fake, Options{Width: 3, MaxRetries: 0, BaseDelay: time.Millisecond})

	collect(d, makeProducts(12))

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 3)
}
