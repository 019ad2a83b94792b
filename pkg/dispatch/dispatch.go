package dispatch

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/product_radar/pkg/backend"
	"github.com/iWorld-y/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/pkg/model"
)

// Options 调度参数
type Options struct {
	Width      int           // 工作协程数
	MaxRetries int           // 可重试错误的最大重试次数
	Timeout    time.Duration // 单次请求超时
	BaseDelay  time.Duration // 退避基准间隔
	Limiter    *rate.Limiter // 跨所有 worker 的聚合限流器
}

// Outcome 单个产品的处理结果
type Outcome struct {
	Product  model.ProductRecord
	Result   *model.AnalysisResult // 失败时为 nil
	Attempts int                   // 已消耗的重试次数
	Err      error
	Canceled bool // 因取消未能完成，应保持 pending 供下次恢复
}

// Dispatcher 有界并发执行器：每个选中产品发起一次分析请求，
// 失败重试、限流与优雅退出都在这里处理。
type Dispatcher struct {
	analyzer backend.Analyzer
	opts     Options
}

// New 创建调度器并补齐默认参数
func New(analyzer backend.Analyzer, opts Options) *Dispatcher {
	if opts.Width <= 0 {
		opts.Width = 3
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 2 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Dispatcher{analyzer: analyzer, opts: opts}
}

// Run 处理整个工作集。onStart / onDone 可能被多个 worker 并发调用。
// ctx 取消后停止投递新任务，进行中的请求继续完成并照常上报。
func (d *Dispatcher) Run(ctx context.Context, products []model.ProductRecord,
	onStart func(model.ProductRecord), onDone func(Outcome)) {

	jobs := make(chan model.ProductRecord)

	var wg sync.WaitGroup
	for i := 0; i < d.opts.Width; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if onStart != nil {
					onStart(p)
				}
				onDone(d.process(ctx, p))
			}
		}()
	}

	// 投递循环：取消即停止提交，未投递的产品保持 pending
feed:
	for _, p := range products {
		select {
		case <-ctx.Done():
			logger.Log.Warnf("收到取消信号，停止投递新任务")
			break feed
		case jobs <- p:
		}
	}
	close(jobs)

	wg.Wait()
}

// process 单个产品的尝试循环
func (d *Dispatcher) process(ctx context.Context, p model.ProductRecord) Outcome {
	var lastErr error

	for attempt := 0; attempt <= d.opts.MaxRetries; attempt++ {
		// 聚合限流：所有 worker 共享同一个限流器
		if err := d.opts.Limiter.Wait(ctx); err != nil {
			return Outcome{Product: p, Attempts: attempt, Err: err, Canceled: true}
		}

		// 已开始的请求不被取消打断，结果照常落盘
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.Timeout)
		report, err := d.analyzer.Analyze(attemptCtx, p)
		cancel()

		if err == nil {
			return Outcome{
				Product:  p,
				Attempts: attempt,
				Result: &model.AnalysisResult{
					ProductID:  p.ID,
					Language:   p.Language,
					Backend:    d.analyzer.Name(),
					Report:     *report,
					Retries:    attempt,
					ProducedAt: time.Now(),
				},
			}
		}

		lastErr = err
		if !backend.Retriable(err) {
			logger.Log.Errorf("产品 [%d-%s] 终态失败: %v", p.ID, p.Name, err)
			return Outcome{Product: p, Attempts: attempt, Err: err}
		}

		if attempt < d.opts.MaxRetries {
			delay := d.backoff(attempt)
			logger.Log.Warnf("产品 [%d-%s] 第 %d 次尝试失败，%s 后重试: %v",
				p.ID, p.Name, attempt+1, delay, err)
			select {
			case <-ctx.Done():
				return Outcome{Product: p, Attempts: attempt + 1, Err: ctx.Err(), Canceled: true}
			case <-time.After(delay):
			}
		}
	}

	logger.Log.Errorf("产品 [%d-%s] 重试耗尽: %v", p.ID, p.Name, lastErr)
	return Outcome{Product: p, Attempts: d.opts.MaxRetries, Err: lastErr}
}

// backoff 指数退避加随机抖动
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.opts.BaseDelay * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Int63n(int64(d.opts.BaseDelay)))
	return delay + jitter
}
