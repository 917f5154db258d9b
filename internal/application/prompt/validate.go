package prompt

import (
	"strings"

	"nut-chat-api/internal/domain/entity"
)

// maxReasonableChars 超过该长度的提示词会得到一条告警结论
const maxReasonableChars = 120000

// Validator 提示词内容校验器
// 校验结论只作标注，永远不会阻断生成
type Validator struct{}

// NewValidator 创建校验器
func NewValidator() *Validator {
	return &Validator{}
}

// Validate 对照已包含的规则集合检查生成内容
func (v *Validator) Validate(content string, included []entity.RuleCategory) []entity.ValidationFinding {
	var findings []entity.ValidationFinding

	// 占位符必须全部被替换
	if strings.Contains(content, "{{") {
		findings = append(findings, entity.ValidationFinding{
			Severity: entity.SeverityError,
			Message:  "content contains an unresolved placeholder",
		})
	}

	// 每个已包含规则的文本应当真实出现在内容里
	for _, rule := range included {
		marker := ruleMarker(rule)
		if marker == "" {
			continue
		}
		if !strings.Contains(content, marker) {
			findings = append(findings, entity.ValidationFinding{
				Severity: entity.SeverityWarning,
				Rule:     rule,
				Message:  "rule listed as included but its text is missing from the content",
			})
		}
	}

	if len(content) > maxReasonableChars {
		findings = append(findings, entity.ValidationFinding{
			Severity: entity.SeverityWarning,
			Message:  "content is unusually large; consider a lower verbosity or a token budget",
		})
	}

	if len(findings) == 0 {
		findings = append(findings, entity.ValidationFinding{
			Severity: entity.SeverityInfo,
			Message:  "content passed all checks",
		})
	}

	return findings
}

// ruleMarker 每个规则文本中在所有档位都稳定出现的片段
func ruleMarker(rule entity.RuleCategory) string {
	switch rule {
	case entity.RuleWebcontainerConstraints:
		return "browser-based Node.js container"
	case entity.RuleTechnologyPreferences:
		return "React"
	case entity.RuleArtifactCreation:
		return "artifact"
	case entity.RuleCodeQuality:
		return "dead code"
	case entity.RuleErrorHandling:
		return "root cause"
	case entity.RuleDesignStandards:
		return "contrast"
	case entity.RuleDatabaseOperations:
		return "migrations"
	case entity.RuleMobileDevelopment:
		return "Expo"
	case entity.RuleDeploymentGuidance:
		return "Deploy"
	default:
		return ""
	}
}
