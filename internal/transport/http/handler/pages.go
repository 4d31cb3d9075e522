package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"yakunote/internal/model"
	"yakunote/internal/transport/http/middleware"
)

type PageHandler struct {
	appName string
}

type pageData struct {
	AppName string
	Title   string
	User    *model.Principal
	ID      string
	Error   string
}

func NewPageHandler(appName string) *PageHandler {
	return &PageHandler{appName: appName}
}

// Render serves the named embedded template with the caller's session.
func (h *PageHandler) Render(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, name, pageData{
			AppName: h.appName,
			Title:   title,
			User:    middleware.Principal(c),
			ID:      c.Param("id"),
			Error:   c.Query("error"),
		})
	}
}
