package prompt

import (
	"strings"

	"nut-chat-api/internal/domain/entity"
)

// OptimizationProfile 提供商的 Token 压缩策略
type OptimizationProfile struct {
	// ReductionTarget 目标压缩比例，0 表示该提供商不做预算压缩
	ReductionTarget float64
	// ExcludedSections 超出预算时优先丢弃的段落名（与段落名做前缀匹配）
	ExcludedSections []string
}

// ProviderProfile 提供商画像
type ProviderProfile struct {
	Category           entity.ProviderCategory
	PreferredVerbosity entity.VerbosityLevel
	Optimization       OptimizationProfile
}

// providerProfiles 按提供商名（小写）索引的画像表
// 未命中的名称回落到 defaultProviderProfile，查询永远不会失败
var providerProfiles = map[string]ProviderProfile{
	"anthropic": {
		Category:           entity.ProviderCategoryFrontier,
		PreferredVerbosity: entity.VerbosityDetailed,
		Optimization: OptimizationProfile{
			ReductionTarget:  0.15,
			ExcludedSections: []string{"rule:deployment_guidance"},
		},
	},
	"claude": {
		Category:           entity.ProviderCategoryFrontier,
		PreferredVerbosity: entity.VerbosityDetailed,
		Optimization: OptimizationProfile{
			ReductionTarget:  0.15,
			ExcludedSections: []string{"rule:deployment_guidance"},
		},
	},
	"openai": {
		Category:           entity.ProviderCategoryBalanced,
		PreferredVerbosity: entity.VerbosityStandard,
		Optimization: OptimizationProfile{
			ReductionTarget:  0.25,
			ExcludedSections: []string{"rule:deployment_guidance", "rule:error_handling"},
		},
	},
	"google": {
		Category:           entity.ProviderCategoryBalanced,
		PreferredVerbosity: entity.VerbosityStandard,
		Optimization: OptimizationProfile{
			ReductionTarget:  0.25,
			ExcludedSections: []string{"rule:deployment_guidance", "rule:error_handling"},
		},
	},
	"gemini": {
		Category:           entity.ProviderCategoryBalanced,
		PreferredVerbosity: entity.VerbosityStandard,
		Optimization: OptimizationProfile{
			ReductionTarget:  0.25,
			ExcludedSections: []string{"rule:deployment_guidance", "rule:error_handling"},
		},
	},
	"mistral": {
		Category:           entity.ProviderCategoryEfficient,
		PreferredVerbosity: entity.VerbosityMinimal,
		Optimization: OptimizationProfile{
			ReductionTarget:  0.5,
			ExcludedSections: []string{"rule:deployment_guidance", "rule:error_handling", "rule:design_standards"},
		},
	},
	"deepseek": {
		Category:           entity.ProviderCategoryEfficient,
		PreferredVerbosity: entity.VerbosityMinimal,
		Optimization: OptimizationProfile{
			ReductionTarget:  0.5,
			ExcludedSections: []string{"rule:deployment_guidance", "rule:error_handling", "rule:design_standards"},
		},
	},
}

// defaultProviderProfile 未知提供商的兜底画像
var defaultProviderProfile = ProviderProfile{
	Category:           entity.ProviderCategoryBalanced,
	PreferredVerbosity: entity.VerbosityStandard,
	Optimization: OptimizationProfile{
		ReductionTarget:  0.25,
		ExcludedSections: []string{"rule:deployment_guidance"},
	},
}

// LookupProvider 按名称查找提供商画像
// 名称匹配不区分大小写，未知名称返回兜底画像而非错误
func LookupProvider(name string) ProviderProfile {
	if profile, ok := providerProfiles[strings.ToLower(strings.TrimSpace(name))]; ok {
		return profile
	}
	return defaultProviderProfile
}
