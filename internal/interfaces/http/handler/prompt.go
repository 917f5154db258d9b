package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"nut-chat-api/internal/application/prompt"
	"nut-chat-api/internal/interfaces/http/dto"
	apperrors "nut-chat-api/pkg/errors"
	"nut-chat-api/pkg/logger"
)

// PromptCache 提示词生成结果缓存
type PromptCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// 相同参数的生成结果是确定的，可以长期复用
const promptCacheTTL = time.Hour

// PromptHandler 提示词处理器
type PromptHandler struct {
	injector *prompt.Injector
	workDir  string
	cache    PromptCache
}

// NewPromptHandler 创建提示词处理器
func NewPromptHandler(injector *prompt.Injector, workDir string, cache PromptCache) *PromptHandler {
	return &PromptHandler{
		injector: injector,
		workDir:  workDir,
		cache:    cache,
	}
}

// Generate 生成系统提示词
// @Summary 生成系统提示词
// @Description 按提供商特征与意图生成分级系统提示词
// @Tags Prompts
// @Accept json
// @Produce json
// @Param request body dto.GeneratePromptRequest true "生成参数"
// @Success 200 {object} dto.Response[dto.GeneratedPromptResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/prompts/generate [post]
func (h *PromptHandler) Generate(c *gin.Context) {
	var req dto.GeneratePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.WorkDir == "" {
		req.WorkDir = h.workDir
	}

	if h.cache != nil {
		data, err := h.cache.GetOrLoadSafe(c.Request.Context(), promptCacheKey(&req), promptCacheTTL, func() (interface{}, error) {
			result, err := h.injector.Generate(c.Request.Context(), req.ToOptions())
			if err != nil {
				return nil, err
			}
			return dto.FromGeneratedPrompt(result), nil
		})
		if err != nil {
			respondAppError(c, apperrors.Wrap(err, apperrors.CodePromptFailed, "prompt generation failed"))
			return
		}

		var resp dto.GeneratedPromptResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			// 缓存内容损坏时回退到直接生成
			logger.Warn(c.Request.Context(), "提示词缓存内容无法解析", "error", err)
		} else {
			dto.Success(c, &resp)
			return
		}
	}

	result, err := h.injector.Generate(c.Request.Context(), req.ToOptions())
	if err != nil {
		respondAppError(c, apperrors.Wrap(err, apperrors.CodePromptFailed, "prompt generation failed"))
		return
	}

	dto.Success(c, dto.FromGeneratedPrompt(result))
}

// promptCacheKey 以完整请求参数为键，保证相同参数命中同一份结果
func promptCacheKey(req *dto.GeneratePromptRequest) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return "prompt:gen:" + hex.EncodeToString(sum[:])
}
