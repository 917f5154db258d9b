package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"nut-chat-api/internal/domain/entity"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// TemplateID 模板标识
type TemplateID string

const (
	TemplateSystemHeader TemplateID = "system_header"
	TemplateModeDiscuss  TemplateID = "mode_discuss"
	TemplateModeBuild    TemplateID = "mode_build"
)

// Registry 模板注册表，按模板与详细程度缓存已加载文本
type Registry struct {
	mu    sync.RWMutex
	cache map[string]string
}

// NewRegistry 创建模板注册表
func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[string]string),
	}
}

// Section 返回指定模板在指定详细程度下的文本
func (r *Registry) Section(id TemplateID, verbosity entity.VerbosityLevel) (string, error) {
	if r == nil {
		return "", fmt.Errorf("prompt registry is nil")
	}

	key := string(id) + "." + string(verbosity)

	r.mu.RLock()
	if text, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return text, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if text, ok := r.cache[key]; ok {
		return text, nil
	}

	path, err := resolveTemplateFile(id, verbosity)
	if err != nil {
		return "", err
	}
	text, err := readEmbeddedText(path)
	if err != nil {
		return "", err
	}

	r.cache[key] = text
	return text, nil
}

func resolveTemplateFile(id TemplateID, verbosity entity.VerbosityLevel) (string, error) {
	switch id {
	case TemplateSystemHeader, TemplateModeDiscuss, TemplateModeBuild:
	default:
		return "", fmt.Errorf("unknown template id: %s", id)
	}
	switch verbosity {
	case entity.VerbosityMinimal, entity.VerbosityStandard, entity.VerbosityDetailed:
	default:
		return "", fmt.Errorf("unknown verbosity level: %s", verbosity)
	}
	return fmt.Sprintf("templates/%s.%s.txt", id, verbosity), nil
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
