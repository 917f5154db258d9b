package prompt

import (
	"nut-chat-api/internal/domain/entity"
)

// 预算阈值：低于 minBudgetTokens 强制 minimal，低于 standardBudgetTokens 封顶 standard
const (
	minBudgetTokens      = 4000
	standardBudgetTokens = 8000
)

// DetermineVerbosity 决定本次生成使用的详细程度
//
// 优先级从高到低：显式覆盖 > 提供商偏好经意图修正 > 预算约束。
// 预算约束只会降低档位，不会抬升。
func DetermineVerbosity(opts Options, profile ProviderProfile) entity.VerbosityLevel {
	if opts.ForceVerbosity != "" {
		return opts.ForceVerbosity
	}

	verbosity := profile.PreferredVerbosity

	if intent := opts.DetectedIntent; intent != nil {
		// 高置信度的简单任务不需要展开规则
		if intent.Confidence == entity.ConfidenceHigh && intent.Context.Complexity == entity.ComplexitySimple {
			verbosity = entity.VerbosityMinimal
		}

		// 复杂任务或低置信度上调一档，detailed 只能从 standard 升上去
		if intent.Context.Complexity == entity.ComplexityComplex || intent.Confidence == entity.ConfidenceLow {
			verbosity = verbosity.StepUp()
		}

		// 高置信度的缺陷修复视为简单任务，压过上面的上调
		if intent.Category == entity.IntentFixBug && intent.Confidence == entity.ConfidenceHigh {
			verbosity = entity.VerbosityMinimal
		}
	}

	// 预算约束最后生效，且只降不升
	if opts.MaxTokens > 0 {
		if opts.MaxTokens < minBudgetTokens {
			verbosity = entity.VerbosityMinimal
		} else if opts.MaxTokens < standardBudgetTokens && verbosity == entity.VerbosityDetailed {
			verbosity = entity.VerbosityStandard
		}
	}

	return verbosity
}
