package runstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/product_radar/pkg/model"
)

func TestLoadOrCreate_New(t *testing.T) {
	root := t.TempDir()

	f, err := LoadOrCreate(root, "20250419", model.LanguageCN, "rank=1-5")

	require.NoError(t, err)
	assert.NotEmpty(t, f.RunID())
	assert.Equal(t, model.StatusPending, f.Status(1))
}

func TestTransitions_PersistAcrossReload(t *testing.T) {
	root := t.TempDir()

	f, err := LoadOrCreate(root, "20250419", model.LanguageCN, "all")
	require.NoError(t, err)
	require.NoError(t, f.EnsurePending([]int{1, 2, 3}))
	require.NoError(t, f.Transition(1, model.StatusSucceeded, 0, ""))
	require.NoError(t, f.Transition(2, model.StatusFailed, 3, "重试耗尽"))

	reloaded, err := LoadOrCreate(root, "20250419", model.LanguageCN, "all")
	require.NoError(t, err)
	assert.Equal(t, f.RunID(), reloaded.RunID())
	assert.Equal(t, model.StatusSucceeded, reloaded.Status(1))
	assert.Equal(t, model.StatusFailed, reloaded.Status(2))
	assert.Equal(t, model.StatusPending, reloaded.Status(3))
}

func TestReload_DemotesInProgress(t *testing.T) {
	root := t.TempDir()

	f, err := LoadOrCreate(root, "20250419", model.LanguageCN, "all")
	require.NoError(t, err)
	require.NoError(t, f.EnsurePending([]int{1}))
	require.NoError(t, f.Transition(1, model.StatusInProgress, 0, ""))

	// 模拟崩溃后重启
	reloaded, err := LoadOrCreate(root, "20250419", model.LanguageCN, "all")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, reloaded.Status(1))
}

func TestTransition_TerminalNotOverwritten(t *testing.T) {
	f, err := LoadOrCreate(t.TempDir(), "20250419", model.LanguageCN, "all")
	require.NoError(t, err)
	require.NoError(t, f.Transition(1, model.StatusSucceeded, 0, ""))

	// 终态不被非终态回退
	require.NoError(t, f.Transition(1, model.StatusInProgress, 0, ""))
	assert.Equal(t, model.StatusSucceeded, f.Status(1))
}

func TestEnsurePending_KeepsCompleted_ResetsFailed(t *testing.T) {
	f, err := LoadOrCreate(t.TempDir(), "20250419", model.LanguageCN, "all")
	require.NoError(t, err)
	require.NoError(t, f.EnsurePending([]int{1, 2, 3}))
	require.NoError(t, f.Transition(1, model.StatusSucceeded, 0, ""))
	require.NoError(t, f.Transition(2, model.StatusCached, 0, ""))
	require.NoError(t, f.Transition(3, model.StatusFailed, 3, "x"))

	require.NoError(t, f.EnsurePending([]int{1, 2, 3}))

	assert.Equal(t, model.StatusSucceeded, f.Status(1))
	assert.Equal(t, model.StatusCached, f.Status(2))
	// 失败条目重新进入 pending
	assert.Equal(t, model.StatusPending, f.Status(3))
}

func TestCounts(t *testing.T) {
	f, err := LoadOrCreate(t.TempDir(), "20250419", model.LanguageEN, "all")
	require.NoError(t, err)
	require.NoError(t, f.EnsurePending([]int{1, 2, 3, 4}))
	require.NoError(t, f.Transition(1, model.StatusSucceeded, 1, ""))
	require.NoError(t, f.Transition(2, model.StatusSucceeded, 0, ""))
	require.NoError(t, f.Transition(3, model.StatusFailed, 3, "x"))

	counts := f.Counts()
	assert.Equal(t, 2, counts[model.StatusSucceeded])
	assert.Equal(t, 1, counts[model.StatusFailed])
	assert.Equal(t, 1, counts[model.StatusPending])
}
