package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/product_radar/pkg/model"
)

func TestMemory_ReadRowAbsent(t *testing.T) {
	m := NewMemory()

	row, err := m.ReadRow(context.Background(), 1, model.LanguageCN)

	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestMemory_WriteAndListSortedByRank(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.WriteRows(context.Background(), []model.TabularRow{
		{ProductID: 3, Language: model.LanguageCN, Rank: 3, SnapshotDate: "20250418"},
		{ProductID: 1, Language: model.LanguageCN, Rank: 1, SnapshotDate: "20250419"},
		{ProductID: 2, Language: model.LanguageEN, Rank: 2, SnapshotDate: "20250419"},
	}))

	rows, err := m.ListRows(context.Background(), model.LanguageCN)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].ProductID)
	assert.Equal(t, 3, rows[1].ProductID)
}

func TestMemory_WriteRowsOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.WriteRows(ctx, []model.TabularRow{
		{ProductID: 1, Language: model.LanguageCN, Rank: 1, Name: "old"},
	}))
	require.NoError(t, m.WriteRows(ctx, []model.TabularRow{
		{ProductID: 1, Language: model.LanguageCN, Rank: 1, Name: "new", FullAnalysis: "分析"},
	}))

	row, err := m.ReadRow(ctx, 1, model.LanguageCN)

	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "new", row.Name)
	assert.Equal(t, "分析", row.FullAnalysis)
}

func TestMemory_LatestSnapshotDate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	latest, err := m.LatestSnapshotDate(ctx, model.LanguageCN)
	require.NoError(t, err)
	assert.Empty(t, latest)

	require.NoError(t, m.WriteRows(ctx, []model.TabularRow{
		{ProductID: 1, Language: model.LanguageCN, Rank: 1, SnapshotDate: "20250418"},
		{ProductID: 2, Language: model.LanguageCN, Rank: 2, SnapshotDate: "20250419"},
	}))

	latest, err = m.LatestSnapshotDate(ctx, model.LanguageCN)
	require.NoError(t, err)
	assert.Equal(t, "20250419", latest)
}
