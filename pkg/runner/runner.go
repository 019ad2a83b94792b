package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/product_radar/pkg/backend"
	"github.com/iWorld-y/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/pkg/dispatch"
	"github.com/iWorld-y/product_radar/pkg/docstore"
	"github.com/iWorld-y/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/pkg/merge"
	"github.com/iWorld-y/product_radar/pkg/model"
	"github.com/iWorld-y/product_radar/pkg/runstate"
	"github.com/iWorld-y/product_radar/pkg/selection"
	"github.com/iWorld-y/product_radar/pkg/storage"
)

// AcquisitionError 榜单快照不可用，仅对需要调度的运行致命
type AcquisitionError struct {
	Language model.Language
	Err      error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("榜单快照不可用 [%s]: %v", e.Language, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Options 一次运行的全部参数
type Options struct {
	Language     string // cn / en / both
	RunDate      string // YYYYMMDD，空串取当天
	Filter       selection.Filter
	Force        bool // 覆盖已有分析产物
	SkipDispatch bool // 仅对账
	SkipMerge    bool // 仅调度
}

// Summary 运行结果汇总，调用方据此决定退出码
type Summary struct {
	Selected      int
	Succeeded     int
	Failed        int
	SkippedCached int
	UnknownIDs    []int
	UnmatchedDocs int
}

// Runner 运行协调器：选择 → 调度（含产物写入）→ 可选对账。
// 每次产品状态迁移都持久化，同一 run_date 重入时跳过已完成条目。
type Runner struct {
	cfg      *config.Config
	store    storage.RowStore
	docs     *docstore.Store
	analyzer backend.Analyzer
	limiter  *rate.Limiter
}

// New 创建 Runner。analyzer 在仅对账运行时可以为 nil。
func New(cfg *config.Config, store storage.RowStore, analyzer backend.Analyzer) *Runner {
	limit := rate.Limit(float64(cfg.Concurrency.RPM) / 60.0)
	burst := cfg.Concurrency.QPS
	return &Runner{
		cfg:      cfg,
		store:    store,
		docs:     docstore.NewStore(cfg.Run.OutputDir),
		analyzer: analyzer,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Run 执行一次完整运行。致命错误通过 error 返回；
// 单个产品的失败只反映在 Summary.Failed 中，不会中断整批。
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.RunDate == "" {
		opts.RunDate = time.Now().Format("20060102")
	}

	var langs []model.Language
	switch opts.Language {
	case "cn":
		langs = []model.Language{model.LanguageCN}
	case "en":
		langs = []model.Language{model.LanguageEN}
	case "", "both":
		langs = []model.Language{model.LanguageCN, model.LanguageEN}
	default:
		return nil, fmt.Errorf("未知语言: %s", opts.Language)
	}

	if !opts.SkipDispatch && r.analyzer == nil {
		return nil, errors.New("未配置分析后端")
	}

	summary := &Summary{}
	for _, lang := range langs {
		if err := r.runLanguage(ctx, lang, opts, summary); err != nil {
			return summary, err
		}
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}
	return summary, nil
}

func (r *Runner) runLanguage(ctx context.Context, lang model.Language, opts Options, summary *Summary) error {
	logger.Log.Infof("开始处理 [%s] 榜单，运行日期 %s", lang, opts.RunDate)

	if !opts.SkipDispatch {
		if err := r.dispatchLanguage(ctx, lang, opts, summary); err != nil {
			return err
		}
	}

	if opts.SkipMerge || ctx.Err() != nil {
		return nil
	}

	merger := merge.New(r.store, r.docs)
	report, err := merger.Merge(ctx, lang, opts.RunDate)
	if err != nil {
		return err
	}
	summary.UnmatchedDocs += len(report.Unmatched)
	return nil
}

func (r *Runner) dispatchLanguage(ctx context.Context, lang model.Language, opts Options, summary *Summary) error {
	rows, err := r.store.ListRows(ctx, lang)
	if err != nil {
		return &AcquisitionError{Language: lang, Err: err}
	}
	if len(rows) == 0 {
		return &AcquisitionError{Language: lang, Err: errors.New("榜单为空")}
	}

	// 本次运行把快照视为冻结数据
	products := make([]model.ProductRecord, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.Record())
	}

	sel := selection.Resolve(products, opts.Filter)
	summary.Selected += len(sel.Selected)
	summary.UnknownIDs = append(summary.UnknownIDs, sel.UnknownIDs...)
	for _, id := range sel.UnknownIDs {
		logger.Log.Warnf("显式 ID %d 不在榜单中，已忽略", id)
	}
	if len(sel.Selected) == 0 {
		logger.Log.Warnf("筛选结果为空 [%s]", lang)
		return nil
	}

	state, err := runstate.LoadOrCreate(r.cfg.Run.OutputDir, opts.RunDate, lang, describeFilter(opts.Filter))
	if err != nil {
		return err
	}

	ids := make([]int, 0, len(sel.Selected))
	for _, p := range sel.Selected {
		ids = append(ids, p.ID)
	}
	if err := state.EnsurePending(ids); err != nil {
		return err
	}

	writer := docstore.NewWriter(r.docs, opts.Force)

	// 跳过已完成的条目；已有文档的条目直接记为 cached
	var toDispatch []model.ProductRecord
	for _, p := range sel.Selected {
		switch state.Status(p.ID) {
		case model.StatusSucceeded, model.StatusCached:
			summary.SkippedCached++
			continue
		}
		key := docstore.Key{ProductID: p.ID, Language: lang, RunDate: opts.RunDate}
		if !opts.Force && r.docs.Exists(key, p.Name) {
			if err := state.Transition(p.ID, model.StatusCached, 0, ""); err != nil {
				return err
			}
			summary.SkippedCached++
			continue
		}
		toDispatch = append(toDispatch, p)
	}

	if len(toDispatch) == 0 {
		logger.Log.Infof("所有选中产品均已完成 [%s]", lang)
		return nil
	}
	logger.Log.Infof("待分析产品 %d 个 [%s]，并发 %d", len(toDispatch), lang, r.cfg.Run.Width)

	d := dispatch.New(r.analyzer, dispatch.Options{
		Width:      r.cfg.Run.Width,
		MaxRetries: r.cfg.Run.MaxRetries,
		Timeout:    time.Duration(r.cfg.Run.TimeoutSeconds) * time.Second,
		Limiter:    r.limiter,
	})

	var mu sync.Mutex
	var stateErr error
	record := func(fn func() error) {
		mu.Lock()
		defer mu.Unlock()
		if err := fn(); err != nil && stateErr == nil {
			stateErr = err
		}
	}

	d.Run(ctx, toDispatch,
		func(p model.ProductRecord) {
			record(func() error {
				return state.Transition(p.ID, model.StatusInProgress, 0, "")
			})
		},
		func(out dispatch.Outcome) {
			record(func() error {
				switch {
				case out.Canceled:
					// 未完成的尝试退回 pending，等待下次恢复
					return state.Transition(out.Product.ID, model.StatusPending, out.Attempts, "")

				case out.Err != nil:
					summary.Failed++
					return state.Transition(out.Product.ID, model.StatusFailed, out.Attempts, out.Err.Error())

				default:
					cached, werr := writer.Write(out.Product, *out.Result, opts.RunDate)
					if werr != nil {
						// 分析成功但落盘失败，按管线失败处理
						summary.Failed++
						return state.Transition(out.Product.ID, model.StatusFailed, out.Attempts, werr.Error())
					}
					if cached {
						summary.SkippedCached++
						return state.Transition(out.Product.ID, model.StatusCached, out.Attempts, "")
					}
					summary.Succeeded++
					return state.Transition(out.Product.ID, model.StatusSucceeded, out.Attempts, "")
				}
			})
		})

	if stateErr != nil {
		return fmt.Errorf("持久化运行状态失败: %w", stateErr)
	}

	counts := state.Counts()
	logger.Log.Infof("调度完成 [%s]: 成功 %d, 失败 %d, 缓存 %d",
		lang, counts[model.StatusSucceeded], counts[model.StatusFailed], counts[model.StatusCached])
	return nil
}

// describeFilter 筛选条件的审计描述
func describeFilter(f selection.Filter) string {
	switch {
	case f.All:
		return "all"
	case len(f.IDs) > 0 && f.RankLo > 0:
		return fmt.Sprintf("ids=%v rank=%d-%d", f.IDs, f.RankLo, f.RankHi)
	case len(f.IDs) > 0:
		return fmt.Sprintf("ids=%v", f.IDs)
	case f.RankLo > 0 || f.RankHi > 0:
		return fmt.Sprintf("rank=%d-%d", f.RankLo, f.RankHi)
	default:
		return "all"
	}
}
