package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mathtutor/internal/app"
	"mathtutor/internal/transport/http/response"
)

type ChatHandler struct {
	tutorService *app.TutorService
}

type ChatRequest struct {
	Message string `json:"message"`
}

func NewChatHandler(tutorService *app.TutorService) *ChatHandler {
	return &ChatHandler{tutorService: tutorService}
}

// Chat answers one tutoring turn. The contract is flat JSON: {"message"}
// in, {"response"} out, {"error"} with a matching status on failure.
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusOK, gin.H{"response": "Con hãy nhập câu hỏi nhé!"})
		return
	}

	answer, err := h.tutorService.Answer(c.Request.Context(), userID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrStudentNotFound):
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat failed")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": answer})
}
