package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/iWorld-y/product_radar/pkg/model"
)

// RowStore 表格存储抽象，一行对应一个 (product_id, language)。
// 单写者：只有 Merger 调用 WriteRows。
type RowStore interface {
	// ListRows 按排名顺序返回某语言的全部行
	ListRows(ctx context.Context, lang model.Language) ([]model.TabularRow, error)
	// ReadRow 精确读取一行，不存在时返回 (nil, nil)
	ReadRow(ctx context.Context, id int, lang model.Language) (*model.TabularRow, error)
	// WriteRows 原子批量覆写，任一行失败则整批不可见
	WriteRows(ctx context.Context, rows []model.TabularRow) error
	// LatestSnapshotDate 某语言最近一次榜单快照日期，无数据时返回空串
	LatestSnapshotDate(ctx context.Context, lang model.Language) (string, error)
}

type rowKey struct {
	id   int
	lang model.Language
}

// Memory 内存实现，用于测试与未配置数据库的运行
type Memory struct {
	mu   sync.RWMutex
	rows map[rowKey]model.TabularRow
}

// NewMemory 创建内存表格存储
func NewMemory() *Memory {
	return &Memory{rows: make(map[rowKey]model.TabularRow)}
}

var _ RowStore = (*Memory)(nil)

// ListRows implements RowStore
func (m *Memory) ListRows(_ context.Context, lang model.Language) ([]model.TabularRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.TabularRow
	for k, r := range m.rows {
		if k.lang == lang {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

// ReadRow implements RowStore
func (m *Memory) ReadRow(_ context.Context, id int, lang model.Language) (*model.TabularRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if r, ok := m.rows[rowKey{id: id, lang: lang}]; ok {
		row := r
		return &row, nil
	}
	return nil, nil
}

// WriteRows implements RowStore
func (m *Memory) WriteRows(_ context.Context, rows []model.TabularRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rows {
		m.rows[rowKey{id: r.ProductID, lang: r.Language}] = r
	}
	return nil
}

// LatestSnapshotDate implements RowStore
func (m *Memory) LatestSnapshotDate(_ context.Context, lang model.Language) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest string
	for k, r := range m.rows {
		if k.lang == lang && r.SnapshotDate > latest {
			latest = r.SnapshotDate
		}
	}
	return latest, nil
}
