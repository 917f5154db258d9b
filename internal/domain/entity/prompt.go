// Package entity 定义领域实体
package entity

// VerbosityLevel 提示词详细程度，三档有序
type VerbosityLevel string

const (
	VerbosityMinimal  VerbosityLevel = "minimal"
	VerbosityStandard VerbosityLevel = "standard"
	VerbosityDetailed VerbosityLevel = "detailed"
)

// rank 返回档位序号，minimal 最低
func (v VerbosityLevel) rank() int {
	switch v {
	case VerbosityStandard:
		return 1
	case VerbosityDetailed:
		return 2
	default:
		return 0
	}
}

// LessThan 判断当前档位是否低于另一档位
func (v VerbosityLevel) LessThan(other VerbosityLevel) bool {
	return v.rank() < other.rank()
}

// StepUp 上调一档，detailed 封顶
func (v VerbosityLevel) StepUp() VerbosityLevel {
	switch v {
	case VerbosityMinimal:
		return VerbosityStandard
	case VerbosityStandard:
		return VerbosityDetailed
	default:
		return VerbosityDetailed
	}
}

// StepDown 下调一档：detailed 降到 standard，其余降到 minimal
func (v VerbosityLevel) StepDown() VerbosityLevel {
	if v == VerbosityDetailed {
		return VerbosityStandard
	}
	return VerbosityMinimal
}

// IntentCategory 用户意图分类
type IntentCategory string

const (
	IntentFixBug         IntentCategory = "fix-bug"
	IntentCreateProject  IntentCategory = "create-project"
	IntentDevelopFeature IntentCategory = "develop-feature"
	IntentDesignUI       IntentCategory = "design-ui"
	IntentDatabaseOps    IntentCategory = "database-ops"
	IntentDeploy         IntentCategory = "deploy"
	IntentQuestion       IntentCategory = "question"
	IntentUnknown        IntentCategory = "unknown"
)

// IntentConfidence 意图识别置信度
type IntentConfidence string

const (
	ConfidenceHigh   IntentConfidence = "high"
	ConfidenceMedium IntentConfidence = "medium"
	ConfidenceLow    IntentConfidence = "low"
)

// TaskComplexity 任务复杂度
type TaskComplexity string

const (
	ComplexitySimple   TaskComplexity = "simple"
	ComplexityModerate TaskComplexity = "moderate"
	ComplexityComplex  TaskComplexity = "complex"
)

// IntentContext 意图附带的上下文标记
type IntentContext struct {
	RequiresDatabase bool           `json:"requires_database"`
	RequiresDesign   bool           `json:"requires_design"`
	Complexity       TaskComplexity `json:"complexity"`
}

// Intent 识别出的用户意图
type Intent struct {
	Category   IntentCategory   `json:"category"`
	Confidence IntentConfidence `json:"confidence"`
	Context    IntentContext    `json:"context"`
}

// RuleCategory 规则类别
// 一个规则类别对应一段可按详细程度展开的提示词文本
type RuleCategory string

const (
	RuleWebcontainerConstraints RuleCategory = "webcontainer_constraints"
	RuleTechnologyPreferences   RuleCategory = "technology_preferences"
	RuleArtifactCreation        RuleCategory = "artifact_creation"
	RuleCodeQuality             RuleCategory = "code_quality"
	RuleErrorHandling           RuleCategory = "error_handling"
	RuleDesignStandards         RuleCategory = "design_standards"
	RuleDatabaseOperations      RuleCategory = "database_operations"
	RuleMobileDevelopment       RuleCategory = "mobile_development"
	RuleDeploymentGuidance      RuleCategory = "deployment_guidance"
)

// ProviderCategory 模型提供商类别
type ProviderCategory string

const (
	ProviderCategoryFrontier  ProviderCategory = "frontier"
	ProviderCategoryBalanced  ProviderCategory = "balanced"
	ProviderCategoryEfficient ProviderCategory = "efficient"
)

// FindingSeverity 校验结论级别
type FindingSeverity string

const (
	SeverityError   FindingSeverity = "error"
	SeverityWarning FindingSeverity = "warning"
	SeverityInfo    FindingSeverity = "info"
)

// ValidationFinding 提示词内容校验结论
// 仅作标注，不会阻断提示词生成
type ValidationFinding struct {
	Severity FindingSeverity `json:"severity"`
	Rule     RuleCategory    `json:"rule,omitempty"`
	Message  string          `json:"message"`
}

// GeneratedPrompt 提示词生成结果
// 一次请求构造一个，构造后不再修改
type GeneratedPrompt struct {
	Content string `json:"content"`
	// EstimatedTokens 按 ceil(字符数/4) 估算，并非精确分词结果
	EstimatedTokens  int                 `json:"estimated_tokens"`
	Verbosity        VerbosityLevel      `json:"verbosity"`
	ProviderCategory ProviderCategory    `json:"provider_category"`
	IncludedRules    []RuleCategory      `json:"included_rules"`
	ExcludedRules    []RuleCategory      `json:"excluded_rules,omitempty"`
	Findings         []ValidationFinding `json:"findings,omitempty"`
}
