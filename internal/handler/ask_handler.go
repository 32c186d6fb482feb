package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/nixai/internal/model"
	"github.com/xxxsen/nixai/internal/pkg/errcode"
	"github.com/xxxsen/nixai/internal/pkg/response"
	"github.com/xxxsen/nixai/internal/service"
)

type AskHandler struct {
	qa *service.QAService
}

func NewAskHandler(qa *service.QAService) *AskHandler {
	return &AskHandler{qa: qa}
}

type askRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Answer  string         `json:"answer"`
	Sources []model.Source `json:"sources"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	res, err := h.qa.Ask(c.Request.Context(), getUserID(c), req.Question)
	if err != nil {
		handleError(c, err)
		return
	}
	sources := res.Sources
	if sources == nil {
		sources = []model.Source{}
	}
	response.Success(c, AskResponse{Answer: res.Answer, Sources: sources})
}

func (h *AskHandler) History(c *gin.Context) {
	entries, err := h.qa.History(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entries)
}
