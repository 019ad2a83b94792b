package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReport_StripsFences(t *testing.T) {
	content := "```json\n{\"overview\":\"概述\",\"analysis\":\"分析\",\"swot\":\"SWOT\",\"rating\":8,\"key_insights\":[\"洞察\"]}\n```"

	report, err := parseReport("deepseek", content)

	require.NoError(t, err)
	assert.Equal(t, "概述", report.Overview)
	assert.Equal(t, 8, report.Rating)
	assert.Equal(t, []string{"洞察"}, report.KeyInsights)
}

func TestParseReport_InvalidJSON(t *testing.T) {
	_, err := parseReport("deepseek", "这不是 JSON")

	var me *MalformedError
	require.ErrorAs(t, err, &me)
	assert.False(t, Retriable(err))
}

func TestParseReport_MissingOverview(t *testing.T) {
	_, err := parseReport("deepseek", `{"rating":5}`)

	var me *MalformedError
	assert.ErrorAs(t, err, &me)
}

func TestParseReport_RatingOutOfRange(t *testing.T) {
	for _, rating := range []string{"0", "11", "-3"} {
		_, err := parseReport("deepseek", `{"overview":"x","rating":`+rating+`}`)

		var me *MalformedError
		assert.ErrorAs(t, err, &me, "rating=%s", rating)
	}
}

func TestClassifyCallError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retriable bool
	}{
		{"限流", errors.New("status 429 Too Many Requests"), true},
		{"超时", errors.New("request timeout"), true},
		{"网络", errors.New("connection refused"), true},
		{"服务端", errors.New("status 503 service unavailable"), true},
		{"截止时间", context.DeadlineExceeded, true},
		{"鉴权", errors.New("status 401 unauthorized"), false},
		{"参数", errors.New("invalid model name"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			classified := classifyCallError("test", tc.err)
			assert.Equal(t, tc.retriable, Retriable(classified))
		})
	}
}

func TestRetriable_OnlyUnavailable(t *testing.T) {
	assert.True(t, Retriable(&UnavailableError{Backend: "b", Err: errors.New("x")}))
	assert.False(t, Retriable(&RejectedError{Backend: "b", Err: errors.New("x")}))
	assert.False(t, Retriable(&MalformedError{Backend: "b", Err: errors.New("x")}))
	assert.False(t, Retriable(errors.New("plain")))
}
