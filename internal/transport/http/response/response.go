package response

import "github.com/gin-gonic/gin"

const (
	CodeBadRequest      = 40000
	CodeInvalidURL      = 40001
	CodeFetchFailed     = 40002
	CodeUnauthorized    = 40100
	CodeForbidden       = 40300
	CodeNotFound        = 40400
	CodeInternalServer  = 50000
	CodeExtractFailed   = 50001
	CodeCompletion      = 50002
	CodeStorage         = 50003
	CodeNotConfigured   = 50004
	CodeAuthUnavailable = 50005
)

// APIError is the body of every failed /api call outside /api/auth.
type APIError struct {
	Detail string `json:"detail"`
	Code   int    `json:"code"`
}

// FetchError is the /api/extract body when the target page answered non-2xx.
type FetchError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
	Code   int    `json:"code"`
}

type AuthError struct {
	Error string `json:"error"`
}

type Status struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Deleted *int64 `json:"deleted,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, data)
}

func Success(c *gin.Context, status Status) {
	status.Status = "success"
	c.JSON(200, status)
}

func Error(c *gin.Context, httpStatus, code int, detail string) {
	c.AbortWithStatusJSON(httpStatus, APIError{
		Code:   code,
		Detail: detail,
	})
}

func Auth(c *gin.Context, httpStatus int, message string) {
	c.AbortWithStatusJSON(httpStatus, AuthError{Error: message})
}
