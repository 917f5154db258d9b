package prompt

import (
	"strings"

	"nut-chat-api/internal/domain/entity"
)

// section 组装期的一个提示词段落
// Name 用于预算压缩时与提供商的丢弃模式做匹配
type section struct {
	Name string
	Rule entity.RuleCategory
	Text string
}

// 段落名前缀约定
const (
	sectionHeader  = "header"
	sectionRule    = "rule:"
	sectionContext = "context:"
	sectionMode    = "mode"
	sectionFooter  = "footer"
)

// SupabaseContext 数据库连接状态，由调用方提供
type SupabaseContext struct {
	Connected       bool `json:"connected"`
	ProjectSelected bool `json:"project_selected"`
	HasCredentials  bool `json:"has_credentials"`
}

// DesignContext 设计指令参数，由调用方提供
type DesignContext struct {
	NewProject       bool                  `json:"new_project"`
	TargetComplexity entity.TaskComplexity `json:"target_complexity"`
}

// ProjectType 项目形态
type ProjectType string

const (
	ProjectTypeWeb    ProjectType = "web"
	ProjectTypeMobile ProjectType = "mobile"
)

// needsDatabaseSection 判断是否注入数据库指令段落
func needsDatabaseSection(intent *entity.Intent) bool {
	if intent == nil {
		return false
	}
	return intent.Context.RequiresDatabase || intent.Category == entity.IntentDatabaseOps
}

// needsDesignSection 判断是否注入设计指令段落
func needsDesignSection(intent *entity.Intent) bool {
	if intent == nil {
		return false
	}
	return intent.Context.RequiresDesign || intent.Category == entity.IntentDesignUI
}

// buildSupabaseSection 按实际连接状态生成数据库指令
func buildSupabaseSection(sc SupabaseContext) string {
	var b strings.Builder
	b.WriteString("Database context: this project uses Supabase.\n")

	switch {
	case !sc.HasCredentials:
		b.WriteString("No Supabase credentials are configured. Ask the user to connect Supabase before attempting any database operation; do not fabricate connection strings or keys.")
	case !sc.Connected:
		b.WriteString("Credentials exist but the connection is not established. Tell the user to complete the Supabase connection from the settings panel before you run queries or migrations.")
	case !sc.ProjectSelected:
		b.WriteString("Supabase is connected but no project is selected. Ask the user to pick a project; schema work targets the selected project only.")
	default:
		b.WriteString("Supabase is connected and a project is selected. You may create migrations and run queries against it, within the database rules above.")
	}

	return b.String()
}

// buildDesignSection 按项目状态生成设计指令
func buildDesignSection(dc DesignContext) string {
	var b strings.Builder
	b.WriteString("Design context: ")

	if dc.NewProject {
		b.WriteString("this is a new project with no established visual language. Establish a small set of design tokens first (palette, type scale, spacing) and derive every screen from them.")
	} else {
		b.WriteString("this project already has a visual language. Match the existing palette, typography and spacing exactly; do not restyle screens the request does not touch.")
	}

	switch dc.TargetComplexity {
	case entity.ComplexitySimple:
		b.WriteString(" Keep the design deliberately plain: one column, generous whitespace, no decorative elements.")
	case entity.ComplexityComplex:
		b.WriteString(" The target design is rich: plan the layout hierarchy before styling, and keep interactive density manageable with progressive disclosure.")
	}

	return b.String()
}

// buildMobileSection 移动端项目的附加指令
func buildMobileSection(verbosity entity.VerbosityLevel, workDir string) string {
	return RenderRule(entity.RuleMobileDevelopment, verbosity, workDir)
}

// allowedHTMLElements 响应正文允许使用的 HTML 元素
var allowedHTMLElements = []string{
	"a", "b", "blockquote", "br", "code", "em", "h1", "h2", "h3", "h4",
	"i", "li", "ol", "p", "pre", "strong", "ul",
}

// buildFormattingFooter 消息格式尾注，始终追加
func buildFormattingFooter() string {
	return "Message formatting: responses may use only the following HTML elements: " +
		strings.Join(allowedHTMLElements, ", ") + ". Any other markup is stripped before display."
}

// joinSections 连接非空段落
func joinSections(sections []section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, "\n\n")
}
