package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iWorld-y/product_radar/pkg/logger"
	"github.com/iWorld-y/product_radar/pkg/model"
)

// ProductState 单个产品在本次运行中的进度
type ProductState struct {
	Status    model.Status `json:"status"`
	Attempts  int          `json:"attempts"` // 已消耗的重试次数
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// State 一次运行的持久化进度，落盘后支持跨进程恢复
type State struct {
	RunID    string                `json:"run_id"`
	RunDate  string                `json:"run_date"`
	Language model.Language        `json:"language"`
	Filter   string                `json:"filter"` // 筛选条件描述，仅用于审计
	Products map[int]*ProductState `json:"products"`
}

// File 带落盘能力的运行状态。每次状态迁移都立即持久化，
// 崩溃最多丢失进行中的尝试，绝不丢失已完成条目。
type File struct {
	mu    sync.Mutex
	path  string
	state *State
}

// statePath 状态文件与该次运行的文档放在同一目录下
func statePath(root, runDate string, lang model.Language) string {
	return filepath.Join(root, "toolify_analysis_"+runDate, fmt.Sprintf("runstate_%s.json", lang))
}

// LoadOrCreate 加载已有运行状态，不存在则新建。
// 加载时上次崩溃遗留的 in_progress 条目降级回 pending。
func LoadOrCreate(root, runDate string, lang model.Language, filterDesc string) (*File, error) {
	path := statePath(root, runDate, lang)

	data, err := os.ReadFile(path)
	if err == nil {
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("解析运行状态失败 [%s]: %w", path, err)
		}
		if st.Products == nil {
			st.Products = make(map[int]*ProductState)
		}
		for id, ps := range st.Products {
			if ps.Status == model.StatusInProgress {
				logger.Log.Warnf("产品 %d 残留 in_progress 状态，重置为 pending", id)
				ps.Status = model.StatusPending
			}
		}
		logger.Log.Infof("恢复运行状态 [%s]: %d 个产品", st.RunID, len(st.Products))
		return &File{path: path, state: &st}, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	st := &State{
		RunID:    uuid.NewString(),
		RunDate:  runDate,
		Language: lang,
		Filter:   filterDesc,
		Products: make(map[int]*ProductState),
	}
	f := &File{path: path, state: st}
	if err := f.save(); err != nil {
		return nil, err
	}
	return f, nil
}

// RunID 本次运行的标识
func (f *File) RunID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.RunID
}

// Status 指定产品当前状态，未登记时返回 pending
func (f *File) Status(id int) model.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ps, ok := f.state.Products[id]; ok {
		return ps.Status
	}
	return model.StatusPending
}

// EnsurePending 把工作集登记为 pending。
// succeeded / cached 条目保持不动；failed 条目重新进入 pending。
func (f *File) EnsurePending(ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		ps, ok := f.state.Products[id]
		if ok && (ps.Status == model.StatusSucceeded || ps.Status == model.StatusCached) {
			continue
		}
		f.state.Products[id] = &ProductState{
			Status:    model.StatusPending,
			UpdatedAt: time.Now(),
		}
	}
	return f.save()
}

// Transition 记录一次状态迁移并立即落盘。
// 状态单调：终态不会被非终态覆盖。
func (f *File) Transition(id int, status model.Status, attempts int, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ps, ok := f.state.Products[id]; ok && ps.Status.Terminal() && !status.Terminal() {
		logger.Log.Warnf("忽略产品 %d 的回退迁移: %s -> %s", id, ps.Status, status)
		return nil
	}

	f.state.Products[id] = &ProductState{
		Status:    status,
		Attempts:  attempts,
		Error:     errMsg,
		UpdatedAt: time.Now(),
	}
	return f.save()
}

// Counts 按状态统计产品数
func (f *File) Counts() map[model.Status]int {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[model.Status]int)
	for _, ps := range f.state.Products {
		counts[ps.Status]++
	}
	return counts
}

// save 原子落盘：临时文件 + rename。调用方必须持有锁。
func (f *File) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("创建状态目录失败: %w", err)
	}

	data, err := json.MarshalIndent(f.state, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
