package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/iWorld-y/product_radar/pkg/backend"
	"github.com/iWorld-y/product_radar/pkg/backend/factory"
	"github.com/iWorld-y/product_radar/pkg/config"
	"github.com/iWorld-y/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/pkg/runner"
	"github.com/iWorld-y/product_radar/pkg/selection"
	"github.com/iWorld-y/product_radar/pkg/storage"
)

func main() {
	var (
		configPath   = flag.String("config", "configs/config.yaml", "配置文件路径")
		language     = flag.String("language", "", "榜单语言: cn / en / both")
		provider     = flag.String("backend", "", "分析后端: openai / deepseek / local")
		rankRange    = flag.String("rank-range", "", "排名范围，如 1-5")
		idList       = flag.String("ids", "", "产品 ID 列表，逗号分隔，如 3,99")
		all          = flag.Bool("all", false, "分析全部产品")
		limit        = flag.Int("limit", 0, "最多选取的产品数")
		offset       = flag.Int("offset", 0, "跳过前 N 个选中产品")
		force        = flag.Bool("force", false, "覆盖已有分析产物")
		skipDispatch = flag.Bool("skip-dispatch", false, "跳过分析，仅对账")
		skipMerge    = flag.Bool("skip-merge", false, "跳过对账，仅分析")
		runDate      = flag.String("run-date", "", "运行日期 YYYYMMDD，默认今天")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if *language != "" {
		cfg.Run.Language = *language
	}
	if *provider != "" {
		cfg.Backend.Provider = *provider
	}
	if *force {
		cfg.Run.Force = true
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动产品雷达...")

	filter, err := buildFilter(*rankRange, *idList, *all, *limit, *offset)
	if err != nil {
		logger.Log.Fatalf("筛选参数非法: %v", err)
	}

	// Ctrl-C 优雅退出：停止投递新任务，进行中的请求继续完成
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.RowStore
	if cfg.DB.Host != "" {
		pg, err := storage.NewPostgres(cfg.DB)
		if err != nil {
			logger.Log.Fatalf("无法连接数据库: %v", err)
		}
		defer pg.Close()
		store = pg
		logger.Log.Info("已成功连接到数据库")
	} else {
		logger.Log.Warn("未配置数据库，使用内存表格存储（仅用于演练）")
		store = storage.NewMemory()
	}

	var analyzer backend.Analyzer
	if !*skipDispatch {
		analyzer, err = factory.NewAnalyzer(ctx, cfg)
		if err != nil {
			logger.Log.Fatalf("分析后端初始化失败: %v", err)
		}
		logger.Log.Infof("使用分析后端: %s", analyzer.Name())
	}

	r := runner.New(cfg, store, analyzer)
	summary, err := r.Run(ctx, runner.Options{
		Language:     cfg.Run.Language,
		RunDate:      *runDate,
		Filter:       filter,
		Force:        cfg.Run.Force,
		SkipDispatch: *skipDispatch,
		SkipMerge:    *skipMerge,
	})

	if summary != nil {
		logger.Log.Infof("运行汇总: 选中 %d, 成功 %d, 失败 %d, 缓存跳过 %d, 未知 ID %d, 无匹配文档 %d",
			summary.Selected, summary.Succeeded, summary.Failed,
			summary.SkippedCached, len(summary.UnknownIDs), summary.UnmatchedDocs)
	}
	if err != nil {
		logger.Log.Errorf("运行失败: %v", err)
		os.Exit(1)
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// buildFilter 把命令行参数组装成筛选条件
func buildFilter(rankRange, idList string, all bool, limit, offset int) (selection.Filter, error) {
	f := selection.Filter{All: all, Limit: limit, Offset: offset}

	if rankRange != "" {
		lo, hi, err := parseRankRange(rankRange)
		if err != nil {
			return f, err
		}
		f.RankLo, f.RankHi = lo, hi
	}

	if idList != "" {
		for _, part := range strings.Split(idList, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return f, fmt.Errorf("产品 ID 必须是数字: %q", part)
			}
			f.IDs = append(f.IDs, id)
		}
	}

	if !all && len(f.IDs) == 0 && f.RankLo == 0 && f.RankHi == 0 {
		// 什么条件都没给就等价于 --all
		f.All = true
	}
	return f, nil
}

// parseRankRange 解析 "1-5" 形式的排名范围
func parseRankRange(s string) (int, int, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("排名范围格式不正确，应为如 1-5: %q", s)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("排名必须是数字: %q", parts[0])
	}
	hi, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("排名必须是数字: %q", parts[1])
	}
	if lo <= 0 || hi <= 0 {
		return 0, 0, fmt.Errorf("排名必须大于 0")
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("起始排名不能大于结束排名")
	}
	return lo, hi, nil
}
