package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"yakunote/internal/app"
	"yakunote/internal/transport/http/middleware"
	"yakunote/internal/transport/http/response"
)

type LibraryHandler struct {
	library *app.LibraryService
	log     *slog.Logger
}

type SaveRequest struct {
	Text    string `json:"text"`
	Summary string `json:"summary"`
	UserID  string `json:"user_id"`
	URL     string `json:"url"`
}

func NewLibraryHandler(library *app.LibraryService, log *slog.Logger) *LibraryHandler {
	return &LibraryHandler{library: library, log: loggerOrDefault(log)}
}

func (h *LibraryHandler) Save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	saved, err := h.library.Save(c.Request.Context(), middleware.Principal(c), app.SaveInput{
		Text:    req.Text,
		Summary: req.Summary,
		UserID:  req.UserID,
		URL:     req.URL,
	})
	if err != nil {
		writeError(c, h.log, "save summary", err)
		return
	}
	response.Success(c, response.Status{ID: saved.ID})
}

func (h *LibraryHandler) List(c *gin.Context) {
	skip, ok := queryInt(c, "skip")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	res, err := h.library.List(c.Request.Context(), c.Param("user_id"), skip, limit)
	if err != nil {
		writeError(c, h.log, "list summaries", err)
		return
	}
	response.OK(c, gin.H{
		"summaries": res.Summaries,
		"total":     res.Page.Total,
		"skip":      res.Page.Skip,
		"limit":     res.Page.Limit,
	})
}

func (h *LibraryHandler) Get(c *gin.Context) {
	summary, err := h.library.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, "get summary", err)
		return
	}
	response.OK(c, gin.H{"summary": summary})
}

func (h *LibraryHandler) English(c *gin.Context) {
	summary, err := h.library.English(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, "get english summary", err)
		return
	}
	response.OK(c, gin.H{"summary": summary})
}

func (h *LibraryHandler) Delete(c *gin.Context) {
	deleted, err := h.library.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, "delete summary", err)
		return
	}
	response.Success(c, response.Status{Message: "Summary deleted", Deleted: &deleted})
}

// queryInt reads an optional integer query parameter, writing a 400 when it is malformed.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, name+" must be an integer")
		return 0, false
	}
	return v, true
}
