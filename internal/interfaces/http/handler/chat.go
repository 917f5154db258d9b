// Package handler 提供 HTTP 请求处理器
package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"nut-chat-api/internal/application/chat"
	"nut-chat-api/internal/domain/entity"
	"nut-chat-api/internal/domain/repository"
	"nut-chat-api/internal/interfaces/http/dto"
	apperrors "nut-chat-api/pkg/errors"
	"nut-chat-api/pkg/logger"
)

// ChatHandler 对话处理器
type ChatHandler struct {
	manager    *chat.SessionManager
	dispatcher *chat.Dispatcher
	listener   *chat.Listener
	recorder   *chat.Recorder
	responses  repository.ChatResponseRepository
}

// NewChatHandler 创建对话处理器
func NewChatHandler(
	manager *chat.SessionManager,
	dispatcher *chat.Dispatcher,
	listener *chat.Listener,
	recorder *chat.Recorder,
	responses repository.ChatResponseRepository,
) *ChatHandler {
	return &ChatHandler{
		manager:    manager,
		dispatcher: dispatcher,
		listener:   listener,
		recorder:   recorder,
		responses:  responses,
	}
}

// CreateChat 创建会话
// @Summary 创建会话
// @Description 销毁旧会话并向后端注册新会话
// @Tags Chats
// @Accept json
// @Produce json
// @Param request body dto.CreateChatRequest true "创建参数"
// @Success 201 {object} dto.Response[dto.ChatSessionResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/chats [post]
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req dto.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	mode := entity.ChatMode(req.Mode)
	if mode == "" {
		mode = entity.ChatModeBuildApp
	}

	session := h.manager.StartNew(c.Request.Context())
	chatID, err := session.Start(c.Request.Context(), mode)
	if err != nil {
		respondAppError(c, err)
		return
	}

	h.recorder.RecordSession(c.Request.Context(), req.AppID, chatID, c.GetString("user_id"))

	dto.Created(c, dto.ChatSessionResponse{
		ChatID:    chatID,
		AppID:     req.AppID,
		State:     string(session.State()),
		CreatedAt: time.Now().Format(time.RFC3339),
	})
}

// SendMessage 发送对话轮次
// @Summary 发送对话轮次
// @Description 派发一个轮次并以 SSE 流式返回响应单元
// @Tags Chats
// @Accept json
// @Produce text/event-stream
// @Param cid path string true "对话 ID"
// @Param request body dto.SendMessageRequest true "轮次内容"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chats/{cid}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID := dto.BindChatID(c)

	session := h.manager.Current()
	if session == nil || session.ChatID() != chatID {
		dto.NotFound(c, "chat session not found")
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	mode := entity.ChatMode(req.Mode)
	if mode == "" {
		mode = entity.ChatModeBuildApp
	}
	messages := req.ToMessages()
	references := req.ToReferences()

	h.recorder.RecordState(c.Request.Context(), chatID, entity.SessionStateSending)
	h.recorder.RecordTurn(c.Request.Context(), entity.NewChatTurn(chatID, mode, messages, references))

	// SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ch := make(chan *entity.ChatResponse, 64)
	forward := func(resp *entity.ChatResponse) {
		h.recorder.RecordResponse(c.Request.Context(), resp)
		select {
		case ch <- resp:
		case <-c.Request.Context().Done():
		}
	}
	session.OnResponsePart(forward)
	session.OnTitle(forward)
	session.OnStatus(forward)

	done := make(chan error, 1)
	go func() {
		done <- session.SendMessage(c.Request.Context(), mode, messages, references)
	}()

	finished := false
	c.Stream(func(w io.Writer) bool {
		select {
		case resp := <-ch:
			c.SSEvent(string(resp.Kind), dto.FromChatResponse(resp))
			return true
		case err := <-done:
			finished = true
			// 先排空缓冲中的剩余响应
			for {
				select {
				case resp := <-ch:
					c.SSEvent(string(resp.Kind), dto.FromChatResponse(resp))
				default:
					if err != nil {
						c.SSEvent("error", gin.H{"message": err.Error()})
					} else {
						c.SSEvent("done", gin.H{"chat_id": chatID})
					}
					return false
				}
			}
		case <-c.Request.Context().Done():
			finished = true
			return false
		}
	})

	if finished {
		h.recorder.RecordState(c.Request.Context(), chatID, entity.SessionStateFinished)
	}
}

// GetResponses 查询响应列表
// @Summary 查询响应列表
// @Description 返回指定时间之后的响应单元；优先读本地记录，未落库时透传后端
// @Tags Chats
// @Produce json
// @Param cid path string true "对话 ID"
// @Param since query string false "起始时间 (RFC3339)"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.Response[dto.ChatResponseListResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/chats/{cid}/responses [get]
func (h *ChatHandler) GetResponses(c *gin.Context) {
	chatID := dto.BindChatID(c)

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			dto.BadRequest(c, "invalid since: "+err.Error())
			return
		}
		since = parsed
	}

	if h.responses != nil {
		page := dto.BindPage(c)
		pagination := repository.NewPagination(page.Page, page.PageSize)

		result, err := h.responses.ListByChatSince(c.Request.Context(), chatID, since, pagination)
		if err != nil {
			logger.Error(c.Request.Context(), "读取响应记录失败", err, "chat_id", chatID)
			dto.InternalError(c, "failed to list responses")
			return
		}

		items := make([]*dto.ChatResponseItem, 0, len(result.Items))
		for _, record := range result.Items {
			items = append(items, &dto.ChatResponseItem{
				ID:      record.ResponseID,
				Kind:    string(record.Kind),
				Time:    record.Time.Format(time.RFC3339Nano),
				Payload: record.Payload,
			})
		}
		dto.SuccessWithPage(c, dto.ChatResponseListResponse{Responses: items},
			dto.NewPageMeta(pagination.Page, pagination.PageSize, int(result.Total)))
		return
	}

	// 未启用记录时透传后端
	responses, err := h.dispatcher.FetchResponses(c.Request.Context(), chatID, since)
	if err != nil {
		respondAppError(c, err)
		return
	}

	items := make([]*dto.ChatResponseItem, 0, len(responses))
	for i := range responses {
		items = append(items, dto.FromChatResponse(&responses[i]))
	}
	dto.Success(c, dto.ChatResponseListResponse{Responses: items})
}

// Listen 续接在途响应
// @Summary 续接在途响应
// @Description 以 SSE 续接已派发轮次的响应流，断线自动重连
// @Tags Chats
// @Produce text/event-stream
// @Param cid path string true "对话 ID"
// @Success 200 "SSE stream"
// @Router /v1/chats/{cid}/listen [get]
func (h *ChatHandler) Listen(c *gin.Context) {
	chatID := dto.BindChatID(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ch := make(chan *entity.ChatResponse, 64)
	done := make(chan error, 1)
	go func() {
		done <- h.listener.Listen(c.Request.Context(), chatID, func(resp *entity.ChatResponse) {
			h.recorder.RecordResponse(c.Request.Context(), resp)
			select {
			case ch <- resp:
			case <-c.Request.Context().Done():
			}
		})
	}()

	c.Stream(func(w io.Writer) bool {
		select {
		case resp := <-ch:
			c.SSEvent(string(resp.Kind), dto.FromChatResponse(resp))
			return true
		case <-done:
			// 先排空缓冲中的剩余响应
			for {
				select {
				case resp := <-ch:
					c.SSEvent(string(resp.Kind), dto.FromChatResponse(resp))
				default:
					c.SSEvent("done", gin.H{"chat_id": chatID})
					return false
				}
			}
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// DeleteChat 销毁会话
// @Summary 销毁会话
// @Description 取消在途轮次并通知后端终止对话
// @Tags Chats
// @Produce json
// @Param cid path string true "对话 ID"
// @Success 204 "No Content"
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/chats/{cid} [delete]
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID := dto.BindChatID(c)

	session := h.manager.Current()
	if session == nil || session.ChatID() != chatID {
		dto.NotFound(c, "chat session not found")
		return
	}

	h.manager.DestroyCurrent(c.Request.Context())
	h.recorder.RecordState(c.Request.Context(), chatID, entity.SessionStateFinished)

	dto.NoContent(c)
}

// respondAppError 按应用错误映射 HTTP 状态
func respondAppError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		dto.Error(c, appErr.HTTPStatus, appErr.Message)
		return
	}
	dto.InternalError(c, err.Error())
}
