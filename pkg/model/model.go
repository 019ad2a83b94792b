package model

import "time"

// Language 榜单语言
type Language string

const (
	LanguageCN Language = "cn"
	LanguageEN Language = "en"
)

// Valid 是否为受支持的语言
func (l Language) Valid() bool {
	return l == LanguageCN || l == LanguageEN
}

// ProductRecord 榜单中的单个产品，(ID, Language) 唯一
type ProductRecord struct {
	ID            int
	Rank          int // 榜单内从 1 开始的稠密排名
	Name          string
	URL           string
	Revenue       string
	MonthlyVisits string
	Description   string
	Language      Language
}

// ProductReport LLM 返回的结构化分析报告
type ProductReport struct {
	Overview    string   `json:"overview"`     // 产品综述
	Analysis    string   `json:"analysis"`     // 产品分析框架问答
	SWOT        string   `json:"swot"`         // SWOT 分析
	Rating      int      `json:"rating"`       // 1-10 评分
	KeyInsights []string `json:"key_insights"` // 关键洞察与建议
}

// AnalysisResult 单个产品的成功分析结果
type AnalysisResult struct {
	ProductID  int
	Language   Language
	Backend    string
	Report     ProductReport
	Retries    int // 成功前经历的重试次数
	ProducedAt time.Time
}

// TabularRow 表格存储中的一行，(ProductID, Language) 唯一。
// FullAnalysis / AnalysisBackend / AnalyzedAt 为分析列，只由 Merger 整体写入。
type TabularRow struct {
	ProductID       int
	Language        Language
	Rank            int
	Name            string
	URL             string
	Revenue         string
	MonthlyVisits   string
	Description     string
	SnapshotDate    string // YYYYMMDD
	FullAnalysis    string
	AnalysisBackend string
	AnalyzedAt      *time.Time
}

// Record 还原行对应的产品记录
func (r TabularRow) Record() ProductRecord {
	return ProductRecord{
		ID:            r.ProductID,
		Rank:          r.Rank,
		Name:          r.Name,
		URL:           r.URL,
		Revenue:       r.Revenue,
		MonthlyVisits: r.MonthlyVisits,
		Description:   r.Description,
		Language:      r.Language,
	}
}

// Status 单个产品在一次运行中的状态
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCached     Status = "cached" // 已有产物，跳过后端调用
)

// Terminal 是否为终态
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCached
}
