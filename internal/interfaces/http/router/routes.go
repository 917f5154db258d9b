// Package router 提供 HTTP 路由配置
package router

import (
	"nut-chat-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	promptHandler *handler.PromptHandler,
	chatHandler *handler.ChatHandler,
) {
	// 提示词生成
	prompts := v1.Group("/prompts")
	{
		prompts.POST("/generate", promptHandler.Generate)
	}

	// 对话会话
	chats := v1.Group("/chats")
	{
		chats.POST("", chatHandler.CreateChat)
		chats.POST("/:cid/messages", chatHandler.SendMessage) // SSE
		chats.GET("/:cid/responses", chatHandler.GetResponses)
		chats.GET("/:cid/listen", chatHandler.Listen) // SSE
		chats.DELETE("/:cid", chatHandler.DeleteChat)
	}
}
