package merge

import (
	"context"
	"fmt"
	"time"

	"github.com/iWorld-y/product_radar/pkg/docstore"
	"github.com/iWorld-y/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/pkg/model"
	"github.com/iWorld-y/product_radar/pkg/storage"
)

// Report 一次对账的结果统计
type Report struct {
	Merged     int
	Unmatched  []int    // 在表格存储中找不到对应行的产品 ID
	Unparsable []string // 文件名解析不出 ID 的文档
}

// Merger 把一次运行产出的叙事文档并入表格存储。
// 行匹配只按 (product_id, language) 精确匹配；分析列整体替换，
// 因此重复对账是幂等的。外部在读写之间修改的行按后写者胜出处理。
type Merger struct {
	store storage.RowStore
	docs  *docstore.Store
}

// New 创建 Merger
func New(store storage.RowStore, docs *docstore.Store) *Merger {
	return &Merger{store: store, docs: docs}
}

// Merge 对账指定语言与运行日期的全部文档。
// 整批行在一次事务性写入中提交，任何存储写入失败都不会留下半更新状态。
func (m *Merger) Merge(ctx context.Context, lang model.Language, runDate string) (*Report, error) {
	docs, unparsable, err := m.docs.List(lang, runDate)
	if err != nil {
		return nil, err
	}

	report := &Report{Unparsable: unparsable}
	for _, name := range unparsable {
		logger.Log.Warnf("文档文件名无法解析出产品 ID，跳过: %s", name)
	}
	if len(docs) == 0 {
		logger.Log.Warnf("未找到可对账的文档 [%s %s]", lang, runDate)
		return report, nil
	}

	// 对账时间取运行日期，保证重复对账结果一致
	analyzedAt, err := time.Parse("20060102", runDate)
	if err != nil {
		return nil, fmt.Errorf("非法运行日期 [%s]: %w", runDate, err)
	}

	var updated []model.TabularRow
	for _, doc := range docs {
		row, err := m.store.ReadRow(ctx, doc.Key.ProductID, lang)
		if err != nil {
			return nil, fmt.Errorf("读取行失败 [产品 %d]: %w", doc.Key.ProductID, err)
		}
		if row == nil {
			// 精确匹配不到就上报，绝不模糊匹配
			logger.Log.Warnf("文档找不到匹配行 [产品 %d %s]", doc.Key.ProductID, lang)
			report.Unmatched = append(report.Unmatched, doc.Key.ProductID)
			continue
		}

		next := *row
		next.FullAnalysis = MarkdownToPlaintext(doc.Content)
		next.AnalysisBackend = docstore.ExtractBackend(doc.Content)
		next.AnalyzedAt = &analyzedAt
		updated = append(updated, next)
	}

	if len(updated) == 0 {
		return report, nil
	}

	if err := m.store.WriteRows(ctx, updated); err != nil {
		return nil, fmt.Errorf("提交表格存储失败: %w", err)
	}

	report.Merged = len(updated)
	logger.Log.Infof("对账完成 [%s %s]: 更新 %d 行, %d 个文档无匹配行",
		lang, runDate, report.Merged, len(report.Unmatched))
	return report, nil
}
