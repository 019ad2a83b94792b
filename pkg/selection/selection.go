package selection

import "github.com/iWorld-y/product_radar/pkg/model"

// Filter 工作集筛选条件。IDs 与排名范围按 AND 组合：
// 先用 IDs 收窄，再用排名范围约束，最后做 Offset/Limit 切片。
type Filter struct {
	All    bool
	IDs    []int
	RankLo int // 含端点，0 表示不限
	RankHi int // 含端点，0 表示不限
	Offset int
	Limit  int // 0 表示不限
}

// Result 解析后的工作集
type Result struct {
	Selected   []model.ProductRecord
	UnknownIDs []int // 显式 ID 集中不存在的 ID，静默丢弃但向调用方上报
}

// Resolve 从完整榜单解析工作集。纯函数：相同筛选条件必然得到相同输出，
// 输出保持原始排名顺序，空交集返回空结果而非错误。
func Resolve(products []model.ProductRecord, f Filter) Result {
	var result Result

	byID := len(f.IDs) > 0 && !f.All
	idSet := make(map[int]bool, len(f.IDs))
	if byID {
		known := make(map[int]bool, len(products))
		for _, p := range products {
			known[p.ID] = true
		}
		for _, id := range f.IDs {
			if known[id] {
				idSet[id] = true
			} else {
				result.UnknownIDs = append(result.UnknownIDs, id)
			}
		}
	}

	var picked []model.ProductRecord
	for _, p := range products {
		if byID && !idSet[p.ID] {
			continue
		}
		if f.RankLo > 0 && p.Rank < f.RankLo {
			continue
		}
		if f.RankHi > 0 && p.Rank > f.RankHi {
			continue
		}
		picked = append(picked, p)
	}

	// offset/limit 最后生效
	if f.Offset > 0 {
		if f.Offset >= len(picked) {
			picked = nil
		} else {
			picked = picked[f.Offset:]
		}
	}
	if f.Limit > 0 && f.Limit < len(picked) {
		picked = picked[:f.Limit]
	}

	result.Selected = picked
	return result
}
