package docstore

import (
	"fmt"
	"time"

	"github.com/iWorld-y/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/pkg/model"
)

// writeRetries 本地落盘的固定重试次数
const writeRetries = 3

// WriteError 产物落盘失败。后端分析成功但写入失败时，
// 该产品按管线失败处理，与后端失败分开统计。
type WriteError struct {
	ProductID int
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("产物写入失败 [产品 %d]: %v", e.ProductID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer 叙事文档写入器
type Writer struct {
	store *Store
	force bool
}

// NewWriter 创建写入器，force 为 true 时覆盖已有文档
func NewWriter(store *Store, force bool) *Writer {
	return &Writer{store: store, force: force}
}

// Write 渲染并持久化一个分析结果。
// 幂等：同 key 已有文档且未要求覆盖时直接复用，返回 cached=true。
func (w *Writer) Write(product model.ProductRecord, result model.AnalysisResult, runDate string) (cached bool, err error) {
	key := Key{ProductID: product.ID, Language: product.Language, RunDate: runDate}

	if !w.force && w.store.Exists(key, product.Name) {
		logger.Log.Debugf("文档已存在，跳过写入 [产品 %d]", product.ID)
		return true, nil
	}

	content := Render(product, result)

	var lastErr error
	for attempt := 1; attempt <= writeRetries; attempt++ {
		if _, lastErr = w.store.Put(key, product.Name, content); lastErr == nil {
			return false, nil
		}
		logger.Log.Warnf("写入文档失败 [产品 %d] 第 %d/%d 次: %v",
			product.ID, attempt, writeRetries, lastErr)
		time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
	}
	return false, &WriteError{ProductID: product.ID, Err: lastErr}
}
