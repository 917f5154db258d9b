// Package prompt 实现动态规则注入的提示词生成
//
// 根据提供商画像、识别意图、对话模式与 token 预算，从静态规则表
// 选取并渲染规则段落，组装出单条系统提示词。生成过程不做任何网络
// 或磁盘 I/O，对相同输入产生字节一致的输出。
package prompt

import (
	"context"
	"strings"
	"time"

	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("prompt")

// Mode 提示词面向的对话模式
type Mode string

const (
	ModeDiscuss Mode = "discuss"
	ModeBuild   Mode = "build"
)

// Options 一次生成请求的全部输入
type Options struct {
	// ProviderName 提供商名称，必填；未知名称回落到默认画像
	ProviderName string
	// DetectedIntent 识别出的用户意图，可缺省
	DetectedIntent *entity.Intent
	// Mode 对话模式，discuss 或 build
	Mode Mode
	// MaxTokens token 预算，0 表示不限制
	MaxTokens int
	// ForceVerbosity 显式指定详细程度，优先级最高
	ForceVerbosity entity.VerbosityLevel
	// Supabase 数据库连接状态
	Supabase SupabaseContext
	// Design 设计指令参数
	Design DesignContext
	// ProjectType 项目形态，mobile 时注入移动端规则
	ProjectType ProjectType
	// WorkDir 规则文本中工作目录占位符的取值，空时使用默认
	WorkDir string
}

const defaultWorkDir = "/home/project"

// Injector 提示词生成器
type Injector struct {
	registry  *Registry
	validator *Validator
}

// NewInjector 创建提示词生成器
func NewInjector() *Injector {
	return &Injector{
		registry:  NewRegistry(),
		validator: NewValidator(),
	}
}

// Generate 生成提示词
//
// 详见包注释。预算压缩失败且档位未到 minimal 时整体降档重建，
// 不会静默超出预算；仅当 minimal 仍超预算时接受溢出。
func (inj *Injector) Generate(ctx context.Context, opts Options) (*entity.GeneratedPrompt, error) {
	_, span := tracer.Start(ctx, "prompt.Generate",
		trace.WithAttributes(
			attribute.String("prompt.provider", opts.ProviderName),
			attribute.String("prompt.mode", string(opts.Mode)),
			attribute.Int("prompt.max_tokens", opts.MaxTokens),
		))
	defer span.End()

	start := time.Now()

	if opts.Mode == "" {
		opts.Mode = ModeBuild
	}
	if opts.WorkDir == "" {
		opts.WorkDir = defaultWorkDir
	}

	profile := LookupProvider(opts.ProviderName)
	verbosity := DetermineVerbosity(opts, profile)

	generated, err := inj.build(opts, profile, verbosity)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	generated.Findings = inj.validator.Validate(generated.Content, generated.IncludedRules)

	span.SetAttributes(
		attribute.String("prompt.verbosity", string(generated.Verbosity)),
		attribute.Int("prompt.estimated_tokens", generated.EstimatedTokens),
	)
	metrics.PromptGenerationTotal.WithLabelValues(string(profile.Category), string(generated.Verbosity)).Inc()
	metrics.PromptGenerationDuration.WithLabelValues(string(profile.Category)).Observe(time.Since(start).Seconds())
	metrics.PromptEstimatedTokens.WithLabelValues(string(generated.Verbosity)).Observe(float64(generated.EstimatedTokens))

	return generated, nil
}

// build 在指定档位组装提示词，超预算时降档递归重建
func (inj *Injector) build(opts Options, profile ProviderProfile, verbosity entity.VerbosityLevel) (*entity.GeneratedPrompt, error) {
	sections, included, excluded, err := inj.assemble(opts, verbosity)
	if err != nil {
		return nil, err
	}

	content := joinSections(sections)
	estimated := EstimateTokens(content)

	// 预算压缩：先丢弃提供商标记的段落，仍超预算则整体降档
	if opts.MaxTokens > 0 && profile.Optimization.ReductionTarget > 0 && estimated > opts.MaxTokens {
		sections, excluded = dropExcludedSections(sections, excluded, profile.Optimization.ExcludedSections)
		included = includedAfterDrop(included, excluded)
		content = joinSections(sections)
		estimated = EstimateTokens(content)

		if estimated > opts.MaxTokens && verbosity != entity.VerbosityMinimal {
			lower := verbosity.StepDown()
			metrics.PromptBudgetRebuilds.WithLabelValues(string(verbosity), string(lower)).Inc()
			return inj.build(opts, profile, lower)
		}
	}

	return &entity.GeneratedPrompt{
		Content:          content,
		EstimatedTokens:  estimated,
		Verbosity:        verbosity,
		ProviderCategory: profile.Category,
		IncludedRules:    included,
		ExcludedRules:    excluded,
	}, nil
}

// assemble 按固定顺序组装全部段落
// 顺序：系统头 -> 必选规则 -> 上下文段落 -> 可选规则 -> 模式指令 -> 格式尾注
func (inj *Injector) assemble(opts Options, verbosity entity.VerbosityLevel) ([]section, []entity.RuleCategory, []entity.RuleCategory, error) {
	ruleSet := RulesForIntent(opts.DetectedIntent, opts.Mode)

	var sections []section
	var included []entity.RuleCategory
	excluded := append([]entity.RuleCategory(nil), ruleSet.Forbidden...)

	header, err := inj.registry.Section(TemplateSystemHeader, verbosity)
	if err != nil {
		return nil, nil, nil, err
	}
	sections = append(sections, section{Name: sectionHeader, Text: header})

	for _, rule := range ruleSet.Required {
		text := RenderRule(rule, verbosity, opts.WorkDir)
		if text == "" {
			continue
		}
		sections = append(sections, section{Name: sectionRule + string(rule), Rule: rule, Text: text})
		included = append(included, rule)
	}

	if needsDatabaseSection(opts.DetectedIntent) {
		sections = append(sections, section{Name: sectionContext + "supabase", Text: buildSupabaseSection(opts.Supabase)})
	}
	if needsDesignSection(opts.DetectedIntent) {
		sections = append(sections, section{Name: sectionContext + "design", Text: buildDesignSection(opts.Design)})
	}
	if opts.ProjectType == ProjectTypeMobile {
		sections = append(sections, section{Name: sectionContext + "mobile", Text: buildMobileSection(verbosity, opts.WorkDir)})
	}

	// minimal 档位不带可选规则
	if verbosity != entity.VerbosityMinimal {
		for _, rule := range ruleSet.Optional {
			text := RenderRule(rule, verbosity, opts.WorkDir)
			if text == "" {
				continue
			}
			sections = append(sections, section{Name: sectionRule + string(rule), Rule: rule, Text: text})
			included = append(included, rule)
		}
	}

	modeTemplate := TemplateModeBuild
	if opts.Mode == ModeDiscuss {
		modeTemplate = TemplateModeDiscuss
	}
	modeText, err := inj.registry.Section(modeTemplate, verbosity)
	if err != nil {
		return nil, nil, nil, err
	}
	sections = append(sections, section{Name: sectionMode, Text: modeText})

	sections = append(sections, section{Name: sectionFooter, Text: buildFormattingFooter()})

	return sections, included, excluded, nil
}

// dropExcludedSections 丢弃与提供商模式前缀匹配的段落
func dropExcludedSections(sections []section, excluded []entity.RuleCategory, patterns []string) ([]section, []entity.RuleCategory) {
	if len(patterns) == 0 {
		return sections, excluded
	}

	kept := sections[:0:0]
	for _, s := range sections {
		dropped := false
		for _, p := range patterns {
			if strings.HasPrefix(s.Name, p) {
				dropped = true
				break
			}
		}
		if dropped {
			if s.Rule != "" {
				excluded = append(excluded, s.Rule)
			}
			continue
		}
		kept = append(kept, s)
	}
	return kept, excluded
}

// includedAfterDrop 从已包含集合中剔除被丢弃的规则
func includedAfterDrop(included, excluded []entity.RuleCategory) []entity.RuleCategory {
	if len(excluded) == 0 {
		return included
	}
	dropped := make(map[entity.RuleCategory]bool, len(excluded))
	for _, r := range excluded {
		dropped[r] = true
	}
	kept := included[:0:0]
	for _, r := range included {
		if !dropped[r] {
			kept = append(kept, r)
		}
	}
	return kept
}
