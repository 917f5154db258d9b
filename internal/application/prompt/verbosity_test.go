package prompt

import (
	"testing"

	"nut-chat-api/internal/domain/entity"

	"github.com/stretchr/testify/assert"
)

func TestDetermineVerbosity(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want entity.VerbosityLevel
	}{
		{
			name: "显式覆盖优先于一切",
			opts: Options{
				ProviderName:   "anthropic",
				ForceVerbosity: entity.VerbosityMinimal,
				MaxTokens:      100000,
			},
			want: entity.VerbosityMinimal,
		},
		{
			name: "无意图时使用提供商偏好",
			opts: Options{ProviderName: "anthropic"},
			want: entity.VerbosityDetailed,
		},
		{
			name: "高置信度简单任务压到 minimal",
			opts: Options{
				ProviderName: "anthropic",
				DetectedIntent: &entity.Intent{
					Category:   entity.IntentDevelopFeature,
					Confidence: entity.ConfidenceHigh,
					Context:    entity.IntentContext{Complexity: entity.ComplexitySimple},
				},
			},
			want: entity.VerbosityMinimal,
		},
		{
			name: "复杂任务上调一档",
			opts: Options{
				ProviderName: "mistral",
				DetectedIntent: &entity.Intent{
					Category:   entity.IntentDevelopFeature,
					Confidence: entity.ConfidenceMedium,
					Context:    entity.IntentContext{Complexity: entity.ComplexityComplex},
				},
			},
			want: entity.VerbosityStandard,
		},
		{
			name: "低置信度上调一档",
			opts: Options{
				ProviderName: "openai",
				DetectedIntent: &entity.Intent{
					Category:   entity.IntentQuestion,
					Confidence: entity.ConfidenceLow,
					Context:    entity.IntentContext{Complexity: entity.ComplexityModerate},
				},
			},
			want: entity.VerbosityDetailed,
		},
		{
			name: "高置信度缺陷修复压过复杂度上调",
			opts: Options{
				ProviderName: "anthropic",
				DetectedIntent: &entity.Intent{
					Category:   entity.IntentFixBug,
					Confidence: entity.ConfidenceHigh,
					Context:    entity.IntentContext{Complexity: entity.ComplexityComplex},
				},
			},
			want: entity.VerbosityMinimal,
		},
		{
			name: "预算低于 4000 强制 minimal",
			opts: Options{ProviderName: "anthropic", MaxTokens: 3999},
			want: entity.VerbosityMinimal,
		},
		{
			name: "预算低于 8000 把 detailed 封顶到 standard",
			opts: Options{ProviderName: "anthropic", MaxTokens: 6000},
			want: entity.VerbosityStandard,
		},
		{
			name: "充足预算不改变档位",
			opts: Options{ProviderName: "anthropic", MaxTokens: 50000},
			want: entity.VerbosityDetailed,
		},
		{
			name: "预算约束不会抬升 minimal 偏好",
			opts: Options{ProviderName: "mistral", MaxTokens: 50000},
			want: entity.VerbosityMinimal,
		},
		{
			name: "预算 3000 且低置信度仍是 minimal",
			opts: Options{
				ProviderName: "openai",
				MaxTokens:    3000,
				DetectedIntent: &entity.Intent{
					Category:   entity.IntentUnknown,
					Confidence: entity.ConfidenceLow,
					Context:    entity.IntentContext{Complexity: entity.ComplexityModerate},
				},
			},
			want: entity.VerbosityMinimal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := LookupProvider(tt.opts.ProviderName)
			got := DetermineVerbosity(tt.opts, profile)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupProvider(t *testing.T) {
	t.Run("名称匹配不区分大小写", func(t *testing.T) {
		assert.Equal(t, entity.ProviderCategoryFrontier, LookupProvider("Anthropic").Category)
		assert.Equal(t, entity.ProviderCategoryEfficient, LookupProvider(" DEEPSEEK ").Category)
	})

	t.Run("未知名称回落到兜底画像", func(t *testing.T) {
		profile := LookupProvider("some-new-vendor")
		assert.Equal(t, entity.ProviderCategoryBalanced, profile.Category)
		assert.Equal(t, entity.VerbosityStandard, profile.PreferredVerbosity)
	})
}

func TestVerbosityStep(t *testing.T) {
	assert.Equal(t, entity.VerbosityStandard, entity.VerbosityMinimal.StepUp())
	assert.Equal(t, entity.VerbosityDetailed, entity.VerbosityStandard.StepUp())
	assert.Equal(t, entity.VerbosityDetailed, entity.VerbosityDetailed.StepUp())

	assert.Equal(t, entity.VerbosityStandard, entity.VerbosityDetailed.StepDown())
	assert.Equal(t, entity.VerbosityMinimal, entity.VerbosityStandard.StepDown())
	assert.Equal(t, entity.VerbosityMinimal, entity.VerbosityMinimal.StepDown())
}
