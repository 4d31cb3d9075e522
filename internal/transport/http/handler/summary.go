package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"yakunote/internal/app"
	"yakunote/internal/extract"
	"yakunote/internal/transport/http/response"
)

type SummaryHandler struct {
	extractor *extract.Extractor
	summaries *app.SummaryService
	log       *slog.Logger
}

type ExtractRequest struct {
	URL string `json:"url"`
}

type TextRequest struct {
	Text string `json:"text"`
}

type TranslateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"targetLang"`
}

func NewSummaryHandler(extractor *extract.Extractor, summaries *app.SummaryService, log *slog.Logger) *SummaryHandler {
	return &SummaryHandler{extractor: extractor, summaries: summaries, log: loggerOrDefault(log)}
}

func (h *SummaryHandler) Extract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if req.URL == "" {
		response.Error(c, http.StatusBadRequest, response.CodeInvalidURL, "url is required")
		return
	}

	text, err := h.extractor.Extract(c.Request.Context(), req.URL)
	if err != nil {
		var fetchErr *extract.FetchError
		switch {
		case errors.Is(err, extract.ErrInvalidURL):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidURL, "url must be an absolute http(s) URL")
		case errors.As(err, &fetchErr):
			h.log.InfoContext(c.Request.Context(), "target page rejected fetch", "url", fetchErr.URL, "status", fetchErr.StatusCode)
			c.AbortWithStatusJSON(http.StatusBadRequest, response.FetchError{
				Error:  "failed to fetch the page",
				Detail: fetchErr.Error(),
				Status: fetchErr.StatusCode,
				Code:   response.CodeFetchFailed,
			})
		case errors.Is(err, extract.ErrEmptyContent):
			response.Error(c, http.StatusInternalServerError, response.CodeExtractFailed, "no readable text found on the page")
		default:
			h.log.ErrorContext(c.Request.Context(), "extract failed", "url", req.URL, "error", err)
			response.Error(c, http.StatusInternalServerError, response.CodeExtractFailed, "failed to extract text from the page")
		}
		return
	}

	response.OK(c, gin.H{"text": text})
}

func (h *SummaryHandler) Summarize(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	summary, err := h.summaries.Summarize(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, h.log, "summarize", err)
		return
	}
	response.OK(c, gin.H{"summary": summary})
}

func (h *SummaryHandler) SummarizeEnglish(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	summary, err := h.summaries.SummarizeEnglish(c.Request.Context(), req.Text)
	if err != nil {
		writeError(c, h.log, "summarize english", err)
		return
	}
	response.OK(c, gin.H{"summary": summary})
}

func (h *SummaryHandler) Translate(c *gin.Context) {
	var req TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	translated, err := h.summaries.Translate(c.Request.Context(), req.Text, req.TargetLang)
	if err != nil {
		writeError(c, h.log, "translate", err)
		return
	}
	response.OK(c, gin.H{"translatedText": translated})
}
