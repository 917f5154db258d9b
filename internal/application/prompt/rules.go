package prompt

import (
	"strings"

	"nut-chat-api/internal/domain/entity"
)

// RuleSet 某一意图类别适用的规则集合
type RuleSet struct {
	Required  []entity.RuleCategory
	Optional  []entity.RuleCategory
	Forbidden []entity.RuleCategory
}

// intentRules 按意图类别索引的规则表
var intentRules = map[entity.IntentCategory]RuleSet{
	entity.IntentFixBug: {
		Required:  []entity.RuleCategory{entity.RuleWebcontainerConstraints, entity.RuleCodeQuality, entity.RuleErrorHandling},
		Optional:  []entity.RuleCategory{entity.RuleTechnologyPreferences},
		Forbidden: []entity.RuleCategory{entity.RuleDesignStandards},
	},
	entity.IntentCreateProject: {
		Required: []entity.RuleCategory{entity.RuleWebcontainerConstraints, entity.RuleTechnologyPreferences, entity.RuleArtifactCreation},
		Optional: []entity.RuleCategory{entity.RuleCodeQuality, entity.RuleDesignStandards},
	},
	entity.IntentDevelopFeature: {
		Required: []entity.RuleCategory{entity.RuleWebcontainerConstraints, entity.RuleTechnologyPreferences, entity.RuleArtifactCreation, entity.RuleCodeQuality},
		Optional: []entity.RuleCategory{entity.RuleErrorHandling},
	},
	entity.IntentDesignUI: {
		Required:  []entity.RuleCategory{entity.RuleWebcontainerConstraints, entity.RuleDesignStandards},
		Optional:  []entity.RuleCategory{entity.RuleTechnologyPreferences, entity.RuleCodeQuality},
		Forbidden: []entity.RuleCategory{entity.RuleDatabaseOperations},
	},
	entity.IntentDatabaseOps: {
		Required:  []entity.RuleCategory{entity.RuleWebcontainerConstraints, entity.RuleDatabaseOperations},
		Optional:  []entity.RuleCategory{entity.RuleErrorHandling},
		Forbidden: []entity.RuleCategory{entity.RuleDesignStandards},
	},
	entity.IntentDeploy: {
		Required: []entity.RuleCategory{entity.RuleWebcontainerConstraints, entity.RuleDeploymentGuidance},
		Optional: []entity.RuleCategory{entity.RuleTechnologyPreferences},
	},
	entity.IntentQuestion: {
		Required:  []entity.RuleCategory{entity.RuleWebcontainerConstraints},
		Optional:  []entity.RuleCategory{entity.RuleTechnologyPreferences},
		Forbidden: []entity.RuleCategory{entity.RuleArtifactCreation},
	},
}

// RulesForIntent 返回意图适用的规则集合
// 意图缺失或类别未知时使用默认集合；build 模式下默认集合额外补充产物与质量规则
func RulesForIntent(intent *entity.Intent, mode Mode) RuleSet {
	if intent != nil {
		if rs, ok := intentRules[intent.Category]; ok {
			return rs
		}
	}

	rs := RuleSet{
		Required: []entity.RuleCategory{entity.RuleWebcontainerConstraints, entity.RuleTechnologyPreferences},
	}
	if mode == ModeBuild {
		rs.Required = append(rs.Required, entity.RuleArtifactCreation, entity.RuleCodeQuality)
	}
	return rs
}

// ruleTexts 规则文本表：每个类别三档文本
// 文本中的 {{workdir}} 占位符在渲染时替换为实际工作目录
var ruleTexts = map[entity.RuleCategory]map[entity.VerbosityLevel]string{
	entity.RuleWebcontainerConstraints: {
		entity.VerbosityMinimal: "Environment: browser-based Node.js container at {{workdir}}. No native binaries, no git, no pip. Prefer Vite for web servers.",
		entity.VerbosityStandard: "Environment constraints: all code runs in a browser-based Node.js container rooted at {{workdir}}. There is no native binary execution, no git, and no pip; Python is limited to the standard library. Databases must be JavaScript-implemented or remote. Prefer Vite for serving web applications and npm scripts for tooling.",
		entity.VerbosityDetailed: "Environment constraints: all code runs in a browser-based Node.js container rooted at {{workdir}}. The container emulates a Linux userland but cannot execute native binaries, so C/C++ compilers, git and pip are unavailable; Python is limited to its standard library. Shell access covers common coreutils plus node and npm. Databases must be JavaScript-implemented (libsql, sqlite via wasm) or reached over the network. Web servers should use Vite rather than hand-rolled HTTP servers; long-running processes must be started through npm scripts so the environment can manage them.",
	},
	entity.RuleTechnologyPreferences: {
		entity.VerbosityMinimal: "Prefer: React + TypeScript + Tailwind via Vite. Avoid introducing new frameworks into an existing project.",
		entity.VerbosityStandard: "Technology preferences: default to React with TypeScript, styled with Tailwind, built with Vite. Reach for a library only when the need is real, and prefer widely used packages with no native dependencies. Never introduce a second framework or styling system into an existing project.",
		entity.VerbosityDetailed: "Technology preferences: default to React with TypeScript, styled with Tailwind, built with Vite. State management should start with React state and context; add a dedicated store only when component state demonstrably falls short. Reach for a library only when the need is real, prefer widely used packages with no native dependencies, and pin nothing unless the user asks. Never introduce a second framework, router or styling system into an existing project; extend what is already there. When the user names a technology, use it even if it is not the default.",
	},
	entity.RuleArtifactCreation: {
		entity.VerbosityMinimal: "Emit every changed file as a complete artifact: full path, full contents. One artifact per logical change.",
		entity.VerbosityStandard: "Artifact rules: emit every changed file as a complete artifact with its full project-relative path and full contents; never emit diffs or elided sections. Group the files of one logical change into one artifact, ordered so that dependencies come before dependents. Include package.json updates whenever imports change.",
		entity.VerbosityDetailed: "Artifact rules: emit every changed file as a complete artifact with its full project-relative path and full contents; never emit diffs, placeholders or elided sections. Group the files of one logical change into one artifact, ordered so that dependencies come before dependents: configuration first, then shared modules, then entry points. Include package.json updates whenever imports change, and include any new asset files the code references. After the artifact, state the single command needed to see the change running.",
	},
	entity.RuleCodeQuality: {
		entity.VerbosityMinimal: "Small focused modules, typed interfaces, no dead code, no commented-out code.",
		entity.VerbosityStandard: "Code quality: keep modules small and focused, type every exported interface, and name things for what they do. Remove dead code rather than commenting it out. Handle the failure path of every async operation. Match the formatting and conventions already present in the project.",
		entity.VerbosityDetailed: "Code quality: keep modules small and focused, type every exported interface, and name things for what they do. Remove dead code rather than commenting it out; version history is not the user's job. Handle the failure path of every async operation and surface errors where the user can see them. Extract duplicated logic once it appears a third time, not before. Match the formatting, naming and file-layout conventions already present in the project, even where they differ from your own defaults.",
	},
	entity.RuleErrorHandling: {
		entity.VerbosityMinimal: "Reproduce the failure before fixing. Fix root causes, not symptoms.",
		entity.VerbosityStandard: "Debugging rules: reproduce the failure before changing code, then fix the root cause rather than the symptom. Preserve existing behavior everywhere the bug does not reach. Add the smallest guard that makes the failure impossible, and state what would have caught the bug earlier.",
		entity.VerbosityDetailed: "Debugging rules: reproduce the failure before changing code, and read the actual error output rather than guessing from the description. Fix the root cause rather than the symptom; if the root cause is outside the reachable code, add the smallest guard that makes the failure impossible and say why the real fix is out of reach. Preserve existing behavior everywhere the bug does not reach, and call out any behavior change the fix forces. Close by stating what check or test would have caught the bug earlier.",
	},
	entity.RuleDesignStandards: {
		entity.VerbosityMinimal: "Responsive layout, consistent spacing scale, accessible contrast, no walls of unstyled content.",
		entity.VerbosityStandard: "Design standards: layouts must be responsive from 320px up, spacing must come from a consistent scale, and text must meet accessible contrast ratios. Use the project's existing palette and typography; introduce new tokens only for a new product area. Empty states, loading states and error states are part of the design, not afterthoughts.",
		entity.VerbosityDetailed: "Design standards: layouts must be responsive from 320px up, spacing must come from a consistent scale, and text must meet accessible contrast ratios. Use the project's existing palette and typography; introduce new tokens only for a new product area, and document them where the existing tokens live. Interactive elements need visible hover, focus and disabled treatments. Empty states, loading states and error states are part of the design, not afterthoughts; every list needs an empty state and every remote read needs a loading state. Prefer layout primitives (flex, grid) over absolute positioning.",
	},
	entity.RuleDatabaseOperations: {
		entity.VerbosityMinimal: "Schema changes via migrations only. Never destructive operations without explicit user confirmation.",
		entity.VerbosityStandard: "Database rules: apply schema changes through migrations only, never by editing tables in place. Never run destructive operations (drop, truncate, delete without a where clause) without explicit user confirmation in the current conversation. Keep row-level security enabled on user-facing tables and scope every query to the authenticated user.",
		entity.VerbosityDetailed: "Database rules: apply schema changes through migrations only, never by editing tables in place, and write each migration so it can run on a database that already has data. Never run destructive operations (drop, truncate, delete without a where clause) without explicit user confirmation in the current conversation, and restate what will be lost before asking. Keep row-level security enabled on user-facing tables, scope every query to the authenticated user, and never embed service-role credentials in client code. Surface connection state to the user before attempting operations that require it.",
	},
	entity.RuleMobileDevelopment: {
		entity.VerbosityMinimal: "Expo-managed React Native only. Test flows on both platform sizes.",
		entity.VerbosityStandard: "Mobile rules: build with Expo-managed React Native; no bare workflow and no native modules that require linking. Use platform-adaptive components for navigation and inputs. Verify flows against both a phone-sized and a tablet-sized viewport before finishing.",
		entity.VerbosityDetailed: "Mobile rules: build with Expo-managed React Native; no bare workflow and no native modules that require linking, since the environment cannot run native build chains. Use platform-adaptive components for navigation, inputs and safe areas, and keep gesture targets at least 44 points. Store secrets with the Expo secure store, never in async storage. Verify flows against both a phone-sized and a tablet-sized viewport before finishing, and note any platform-specific behavior the user should test on a device.",
	},
	entity.RuleDeploymentGuidance: {
		entity.VerbosityMinimal: "Deploy only on explicit request. Build must pass locally first.",
		entity.VerbosityStandard: "Deployment rules: deploy only when the user explicitly asks. Run the production build locally first and fix build failures before publishing. State the deployed URL and which environment variables the deployment expects.",
		entity.VerbosityDetailed: "Deployment rules: deploy only when the user explicitly asks; never publish as a side effect of another change. Run the production build locally first and fix build failures before publishing. Confirm which environment variables the deployment expects and whether they are set; never print secret values back to the user. After deploying, state the URL, the build that was published and how to roll back.",
	},
}

// RenderRule 渲染某个规则类别在指定详细程度下的文本
// 未登记的类别返回空串，调用方据此丢弃该段落
func RenderRule(category entity.RuleCategory, verbosity entity.VerbosityLevel, workDir string) string {
	levels, ok := ruleTexts[category]
	if !ok {
		return ""
	}
	text, ok := levels[verbosity]
	if !ok {
		return ""
	}
	return strings.ReplaceAll(text, "{{workdir}}", workDir)
}
