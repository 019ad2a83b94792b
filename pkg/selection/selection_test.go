package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/product_radar/pkg/model"
)

func makeProducts(n int) []model.ProductRecord {
	products := make([]model.ProductRecord, 0, n)
	for i := 1; i <= n; i++ {
		products = append(products, model.ProductRecord{
			ID:       i,
			Rank:     i,
			Name:     "tool",
			Language: model.LanguageCN,
		})
	}
	return products
}

func TestResolve_RankRange(t *testing.T) {
	products := makeProducts(20)

	result := Resolve(products, Filter{RankLo: 1, RankHi: 5})

	require.Len(t, result.Selected, 5)
	for i, p := range result.Selected {
		assert.Equal(t, i+1, p.Rank)
	}
	assert.Empty(t, result.UnknownIDs)
}

func TestResolve_ExplicitIDs_UnknownDropped(t *testing.T) {
	products := makeProducts(20)

	result := Resolve(products, Filter{IDs: []int{3, 99}})

	require.Len(t, result.Selected, 1)
	assert.Equal(t, 3, result.Selected[0].ID)
	assert.Equal(t, []int{99}, result.UnknownIDs)
}

func TestResolve_IDsAndRange_Compose(t *testing.T) {
	products := makeProducts(20)

	// ids 先收窄，排名范围再约束
	result := Resolve(products, Filter{IDs: []int{2, 4, 8, 16}, RankLo: 3, RankHi: 10})

	require.Len(t, result.Selected, 2)
	assert.Equal(t, 4, result.Selected[0].ID)
	assert.Equal(t, 8, result.Selected[1].ID)
}

func TestResolve_EmptyIntersection(t *testing.T) {
	products := makeProducts(20)

	result := Resolve(products, Filter{IDs: []int{1, 2}, RankLo: 10, RankHi: 15})

	assert.Empty(t, result.Selected)
}

func TestResolve_OffsetAndLimit(t *testing.T) {
	products := makeProducts(20)

	result := Resolve(products, Filter{All: true, Offset: 5, Limit: 3})

	require.Len(t, result.Selected, 3)
	assert.Equal(t, 6, result.Selected[0].Rank)
	assert.Equal(t, 8, result.Selected[2].Rank)

	// offset 超出范围得到空集
	result = Resolve(products, Filter{All: true, Offset: 100})
	assert.Empty(t, result.Selected)
}

func TestResolve_Deterministic(t *testing.T) {
	products := makeProducts(20)
	f := Filter{IDs: []int{7, 3, 99, 11}, RankLo: 1, RankHi: 10}

	first := Resolve(products, f)
	second := Resolve(products, f)

	assert.Equal(t, first, second)
}

func TestResolve_PreservesOrder(t *testing.T) {
	products := makeProducts(20)

	// 筛选 ID 的给定顺序不影响输出顺序
	result := Resolve(products, Filter{IDs: []int{9, 1, 5}})

	require.Len(t, result.Selected, 3)
	assert.Equal(t, 1, result.Selected[0].ID)
	assert.Equal(t, 5, result.Selected[1].ID)
	assert.Equal(t, 9, result.Selected[2].ID)
}
