package prompt

import (
	"context"
	"strings"
	"testing"

	"nut-chat-api/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectorGenerate_ForceVerbosity(t *testing.T) {
	inj := NewInjector()

	for _, verbosity := range []entity.VerbosityLevel{
		entity.VerbosityMinimal, entity.VerbosityStandard, entity.VerbosityDetailed,
	} {
		got, err := inj.Generate(context.Background(), Options{
			ProviderName:   "anthropic",
			Mode:           ModeBuild,
			ForceVerbosity: verbosity,
		})
		require.NoError(t, err)
		assert.Equal(t, verbosity, got.Verbosity)
	}
}

func TestInjectorGenerate_TinyBudgetForcesMinimal(t *testing.T) {
	inj := NewInjector()

	// 4000 以下的预算无论提供商偏好如何都必须落在 minimal
	for _, provider := range []string{"anthropic", "openai", "mistral", "unknown-vendor"} {
		got, err := inj.Generate(context.Background(), Options{
			ProviderName: provider,
			Mode:         ModeBuild,
			MaxTokens:    3500,
		})
		require.NoError(t, err)
		assert.Equal(t, entity.VerbosityMinimal, got.Verbosity, "provider %s", provider)
	}
}

func TestInjectorGenerate_Deterministic(t *testing.T) {
	inj := NewInjector()
	opts := Options{
		ProviderName: "openai",
		Mode:         ModeBuild,
		MaxTokens:    8000,
		DetectedIntent: &entity.Intent{
			Category:   entity.IntentDevelopFeature,
			Confidence: entity.ConfidenceMedium,
			Context:    entity.IntentContext{Complexity: entity.ComplexityModerate, RequiresDatabase: true},
		},
		Supabase: SupabaseContext{HasCredentials: true, Connected: true},
	}

	first, err := inj.Generate(context.Background(), opts)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := inj.Generate(context.Background(), opts)
		require.NoError(t, err)
		assert.Equal(t, first.Content, again.Content)
		assert.Equal(t, first.EstimatedTokens, again.EstimatedTokens)
		assert.Equal(t, first.IncludedRules, again.IncludedRules)
		assert.Equal(t, first.ExcludedRules, again.ExcludedRules)
	}
}

func TestInjectorGenerate_BudgetRespectedOrMinimal(t *testing.T) {
	inj := NewInjector()

	// 预算要么被满足，要么已经降到 minimal 无可再降
	for _, maxTokens := range []int{200, 500, 1000, 5000, 20000} {
		got, err := inj.Generate(context.Background(), Options{
			ProviderName: "anthropic",
			Mode:         ModeBuild,
			MaxTokens:    maxTokens,
			DetectedIntent: &entity.Intent{
				Category:   entity.IntentCreateProject,
				Confidence: entity.ConfidenceMedium,
				Context:    entity.IntentContext{Complexity: entity.ComplexityComplex},
			},
		})
		require.NoError(t, err)
		if got.EstimatedTokens > maxTokens {
			assert.Equal(t, entity.VerbosityMinimal, got.Verbosity,
				"budget %d exceeded at non-minimal verbosity", maxTokens)
		}
	}
}

func TestInjectorGenerate_HighConfidenceSimpleFixBug(t *testing.T) {
	inj := NewInjector()

	got, err := inj.Generate(context.Background(), Options{
		ProviderName: "openai",
		Mode:         ModeBuild,
		DetectedIntent: &entity.Intent{
			Category:   entity.IntentFixBug,
			Confidence: entity.ConfidenceHigh,
			Context:    entity.IntentContext{Complexity: entity.ComplexitySimple},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.VerbosityMinimal, got.Verbosity)
	assert.Equal(t, entity.ProviderCategoryBalanced, got.ProviderCategory)

	// 缺陷修复的必选规则都在，禁用的设计规则不在
	assert.Contains(t, got.IncludedRules, entity.RuleWebcontainerConstraints)
	assert.Contains(t, got.IncludedRules, entity.RuleCodeQuality)
	assert.Contains(t, got.IncludedRules, entity.RuleErrorHandling)
	assert.NotContains(t, got.IncludedRules, entity.RuleDesignStandards)
	assert.Contains(t, got.ExcludedRules, entity.RuleDesignStandards)

	// minimal 档位丢弃可选规则
	assert.NotContains(t, got.IncludedRules, entity.RuleTechnologyPreferences)
}

func TestInjectorGenerate_WorkDirSubstitution(t *testing.T) {
	inj := NewInjector()

	got, err := inj.Generate(context.Background(), Options{
		ProviderName: "anthropic",
		Mode:         ModeBuild,
		WorkDir:      "/srv/workspace",
	})
	require.NoError(t, err)

	assert.Contains(t, got.Content, "/srv/workspace")
	assert.NotContains(t, got.Content, "{{workdir}}")
}

func TestInjectorGenerate_ContextSections(t *testing.T) {
	inj := NewInjector()

	t.Run("数据库意图带出连接状态段落", func(t *testing.T) {
		got, err := inj.Generate(context.Background(), Options{
			ProviderName: "openai",
			Mode:         ModeBuild,
			DetectedIntent: &entity.Intent{
				Category:   entity.IntentDatabaseOps,
				Confidence: entity.ConfidenceHigh,
				Context:    entity.IntentContext{Complexity: entity.ComplexityModerate},
			},
			Supabase: SupabaseContext{},
		})
		require.NoError(t, err)
		assert.Contains(t, got.Content, "No Supabase credentials are configured")
	})

	t.Run("设计意图带出设计指令段落", func(t *testing.T) {
		got, err := inj.Generate(context.Background(), Options{
			ProviderName: "openai",
			Mode:         ModeBuild,
			DetectedIntent: &entity.Intent{
				Category:   entity.IntentDesignUI,
				Confidence: entity.ConfidenceHigh,
				Context:    entity.IntentContext{Complexity: entity.ComplexityModerate},
			},
			Design: DesignContext{NewProject: true},
		})
		require.NoError(t, err)
		assert.Contains(t, got.Content, "design tokens")
	})

	t.Run("移动端项目带出移动端规则", func(t *testing.T) {
		got, err := inj.Generate(context.Background(), Options{
			ProviderName: "openai",
			Mode:         ModeBuild,
			ProjectType:  ProjectTypeMobile,
		})
		require.NoError(t, err)
		assert.Contains(t, got.Content, "Expo")
	})

	t.Run("无意图时不带上下文段落", func(t *testing.T) {
		got, err := inj.Generate(context.Background(), Options{
			ProviderName: "openai",
			Mode:         ModeBuild,
		})
		require.NoError(t, err)
		assert.NotContains(t, got.Content, "Supabase")
		assert.NotContains(t, got.Content, "Design context")
	})
}

func TestInjectorGenerate_ModeSelectsTemplate(t *testing.T) {
	inj := NewInjector()

	build, err := inj.Generate(context.Background(), Options{ProviderName: "openai", Mode: ModeBuild})
	require.NoError(t, err)
	discuss, err := inj.Generate(context.Background(), Options{ProviderName: "openai", Mode: ModeDiscuss})
	require.NoError(t, err)

	assert.NotEqual(t, build.Content, discuss.Content)
}

func TestInjectorGenerate_FooterAlwaysPresent(t *testing.T) {
	inj := NewInjector()

	for _, verbosity := range []entity.VerbosityLevel{
		entity.VerbosityMinimal, entity.VerbosityStandard, entity.VerbosityDetailed,
	} {
		got, err := inj.Generate(context.Background(), Options{
			ProviderName:   "anthropic",
			Mode:           ModeBuild,
			ForceVerbosity: verbosity,
		})
		require.NoError(t, err)
		assert.Contains(t, got.Content, "Message formatting:")
	}
}

func TestInjectorGenerate_EstimateMatchesContent(t *testing.T) {
	inj := NewInjector()

	got, err := inj.Generate(context.Background(), Options{ProviderName: "anthropic", Mode: ModeBuild})
	require.NoError(t, err)
	assert.Equal(t, EstimateTokens(got.Content), got.EstimatedTokens)
	assert.Positive(t, got.EstimatedTokens)
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	t.Run("未替换的占位符产生 error 结论", func(t *testing.T) {
		findings := v.Validate("some content with {{workdir}} left over", nil)
		require.NotEmpty(t, findings)
		assert.Equal(t, entity.SeverityError, findings[0].Severity)
	})

	t.Run("缺失的已包含规则产生 warning 结论", func(t *testing.T) {
		findings := v.Validate("content without any rule text", []entity.RuleCategory{entity.RuleCodeQuality})
		require.NotEmpty(t, findings)
		assert.Equal(t, entity.SeverityWarning, findings[0].Severity)
		assert.Equal(t, entity.RuleCodeQuality, findings[0].Rule)
	})

	t.Run("干净内容得到 info 结论", func(t *testing.T) {
		findings := v.Validate("a clean prompt body", nil)
		require.Len(t, findings, 1)
		assert.Equal(t, entity.SeverityInfo, findings[0].Severity)
	})

	t.Run("超长内容产生 warning 结论", func(t *testing.T) {
		findings := v.Validate(strings.Repeat("x", maxReasonableChars+1), nil)
		require.NotEmpty(t, findings)
		assert.Equal(t, entity.SeverityWarning, findings[0].Severity)
	})
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("a", 100)))
}

func TestRulesForIntent_Default(t *testing.T) {
	t.Run("build 模式默认集合补充产物与质量规则", func(t *testing.T) {
		rs := RulesForIntent(nil, ModeBuild)
		assert.Contains(t, rs.Required, entity.RuleArtifactCreation)
		assert.Contains(t, rs.Required, entity.RuleCodeQuality)
	})

	t.Run("discuss 模式默认集合不含产物规则", func(t *testing.T) {
		rs := RulesForIntent(nil, ModeDiscuss)
		assert.NotContains(t, rs.Required, entity.RuleArtifactCreation)
	})

	t.Run("未知意图类别回落到默认集合", func(t *testing.T) {
		rs := RulesForIntent(&entity.Intent{Category: entity.IntentUnknown}, ModeDiscuss)
		assert.Equal(t, RulesForIntent(nil, ModeDiscuss), rs)
	})
}
