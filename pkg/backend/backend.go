package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iWorld-y/product_radar/pkg/model"
)

// Analyzer 分析后端的统一能力，各实现自行处理鉴权与请求构造
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, product model.ProductRecord) (*model.ProductReport, error)
}

// UnavailableError 网络 / 超时 / 限流类错误，可重试
type UnavailableError struct {
	Backend string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("后端 [%s] 暂不可用: %v", e.Backend, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// RejectedError 后端明确拒绝请求（鉴权、参数等），不可重试
type RejectedError struct {
	Backend string
	Err     error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("后端 [%s] 拒绝请求: %v", e.Backend, e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

// MalformedError 响应可读但结构校验失败，不可重试
type MalformedError struct {
	Backend string
	Err     error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("后端 [%s] 返回格式非法: %v", e.Backend, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Retriable 只有 UnavailableError 允许重试
func Retriable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// classifyCallError 将一次调用错误归入错误分类
func classifyCallError(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &UnavailableError{Backend: name, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "temporarily"),
		strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"):
		return &UnavailableError{Backend: name, Err: err}
	}
	return &RejectedError{Backend: name, Err: err}
}

// parseReport 清洗模型输出并解析为结构化报告
func parseReport(name, content string) (*model.ProductReport, error) {
	clean := strings.TrimSpace(content)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")

	var report model.ProductReport
	if err := json.Unmarshal([]byte(clean), &report); err != nil {
		return nil, &MalformedError{Backend: name, Err: fmt.Errorf("json unmarshal: %w", err)}
	}
	if report.Overview == "" {
		return nil, &MalformedError{Backend: name, Err: errors.New("缺少 overview 字段")}
	}
	if report.Rating < 1 || report.Rating > 10 {
		return nil, &MalformedError{Backend: name, Err: fmt.Errorf("评分越界: %d", report.Rating)}
	}
	return &report, nil
}
