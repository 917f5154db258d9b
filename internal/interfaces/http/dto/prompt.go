package dto

import (
	"nut-chat-api/internal/application/prompt"
	"nut-chat-api/internal/domain/entity"
)

// IntentRequest 识别意图
type IntentRequest struct {
	Category         string `json:"category" binding:"required"`
	Confidence       string `json:"confidence,omitempty"`
	Complexity       string `json:"complexity,omitempty"`
	RequiresDatabase bool   `json:"requires_database,omitempty"`
	RequiresDesign   bool   `json:"requires_design,omitempty"`
}

// GeneratePromptRequest 提示词生成请求
type GeneratePromptRequest struct {
	Provider       string         `json:"provider" binding:"required"`
	Mode           string         `json:"mode,omitempty" binding:"omitempty,oneof=discuss build"`
	MaxTokens      int            `json:"max_tokens,omitempty" binding:"omitempty,min=0"`
	ForceVerbosity string         `json:"force_verbosity,omitempty" binding:"omitempty,oneof=minimal standard detailed"`
	Intent         *IntentRequest `json:"intent,omitempty"`
	ProjectType    string         `json:"project_type,omitempty" binding:"omitempty,oneof=web mobile"`
	WorkDir        string         `json:"work_dir,omitempty"`

	SupabaseConnected       bool `json:"supabase_connected,omitempty"`
	SupabaseProjectSelected bool `json:"supabase_project_selected,omitempty"`
	SupabaseHasCredentials  bool `json:"supabase_has_credentials,omitempty"`

	DesignNewProject       bool   `json:"design_new_project,omitempty"`
	DesignTargetComplexity string `json:"design_target_complexity,omitempty"`
}

// ToOptions 转换为生成选项
func (r *GeneratePromptRequest) ToOptions() prompt.Options {
	opts := prompt.Options{
		ProviderName:   r.Provider,
		Mode:           prompt.Mode(r.Mode),
		MaxTokens:      r.MaxTokens,
		ForceVerbosity: entity.VerbosityLevel(r.ForceVerbosity),
		ProjectType:    prompt.ProjectType(r.ProjectType),
		WorkDir:        r.WorkDir,
		Supabase: prompt.SupabaseContext{
			Connected:       r.SupabaseConnected,
			ProjectSelected: r.SupabaseProjectSelected,
			HasCredentials:  r.SupabaseHasCredentials,
		},
		Design: prompt.DesignContext{
			NewProject:       r.DesignNewProject,
			TargetComplexity: entity.TaskComplexity(r.DesignTargetComplexity),
		},
	}

	if r.Intent != nil {
		opts.DetectedIntent = &entity.Intent{
			Category:   entity.IntentCategory(r.Intent.Category),
			Confidence: entity.IntentConfidence(r.Intent.Confidence),
			Context: entity.IntentContext{
				Complexity:       entity.TaskComplexity(r.Intent.Complexity),
				RequiresDatabase: r.Intent.RequiresDatabase,
				RequiresDesign:   r.Intent.RequiresDesign,
			},
		}
	}

	return opts
}

// FindingResponse 校验结论
type FindingResponse struct {
	Severity string `json:"severity"`
	Rule     string `json:"rule,omitempty"`
	Message  string `json:"message"`
}

// GeneratedPromptResponse 提示词生成结果
type GeneratedPromptResponse struct {
	Content          string            `json:"content"`
	EstimatedTokens  int               `json:"estimated_tokens"`
	Verbosity        string            `json:"verbosity"`
	ProviderCategory string            `json:"provider_category"`
	IncludedRules    []string          `json:"included_rules"`
	ExcludedRules    []string          `json:"excluded_rules,omitempty"`
	Findings         []FindingResponse `json:"findings,omitempty"`
}

// FromGeneratedPrompt 由领域结果构造
func FromGeneratedPrompt(p *entity.GeneratedPrompt) *GeneratedPromptResponse {
	resp := &GeneratedPromptResponse{
		Content:          p.Content,
		EstimatedTokens:  p.EstimatedTokens,
		Verbosity:        string(p.Verbosity),
		ProviderCategory: string(p.ProviderCategory),
		IncludedRules:    ruleNames(p.IncludedRules),
		ExcludedRules:    ruleNames(p.ExcludedRules),
	}
	for _, f := range p.Findings {
		resp.Findings = append(resp.Findings, FindingResponse{
			Severity: string(f.Severity),
			Rule:     string(f.Rule),
			Message:  f.Message,
		})
	}
	return resp
}

func ruleNames(rules []entity.RuleCategory) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, string(r))
	}
	return out
}
