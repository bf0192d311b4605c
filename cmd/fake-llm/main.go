// Command fake-llm serves an OpenAI compatible streaming completions endpoint
// for running the gateway locally without a model.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/logger"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

type completionRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	if err := logger.Init("development", "info"); err != nil {
		panic(err)
	}
	defer logger.Sync()

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/v1/chat/completions", func(c *gin.Context) {
		var req completionRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid request"}})
			return
		}

		last := req.Messages[len(req.Messages)-1].Content
		logger.Info("Received completion request", "model", req.Model, "messages", len(req.Messages))

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Status(http.StatusOK)

		reply := fmt.Sprintf("Interesting. Who exactly has the problem behind %q, and how do they solve it today?", last)
		for _, word := range strings.SplitAfter(reply, " ") {
			c.Render(-1, sse.Event{Data: gin.H{
				"choices": []gin.H{{"delta": gin.H{"content": word}}},
			}})
			c.Writer.Flush()
			time.Sleep(20 * time.Millisecond)
		}
		c.Render(-1, sse.Event{Data: "[DONE]"})
	})

	logger.Info("Fake LLM starting", "port", port)
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("Fake LLM stopped", "error", err)
	}
}
