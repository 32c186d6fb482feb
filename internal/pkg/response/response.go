package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/nixai/internal/pkg/errcode"
)

var defaultMessages = map[int]string{
	errcode.ErrUnknown:                "unknown error",
	errcode.ErrUnauthorized:           "unauthorized",
	errcode.ErrForbidden:              "forbidden",
	errcode.ErrNotFound:               "not found",
	errcode.ErrInvalid:                "invalid request",
	errcode.ErrConflict:               "conflict",
	errcode.ErrTooMany:                "too many requests",
	errcode.ErrInternal:               "internal error",
	errcode.ErrInvalidFile:            "unsupported or unreadable file",
	errcode.ErrUploadFailed:           "upload failed",
	errcode.ErrAIUnavailable:          "ai provider unavailable",
	errcode.ErrFileTooLarge:           "file too large",
	errcode.ErrInvalidTenant:          "invalid user",
	errcode.ErrIngestBusy:             "too many uploads in progress, try again later",
	errcode.ErrGenerationAuth:         "answer model rejected the credentials",
	errcode.ErrGenerationConnectivity: "answer model is unreachable, try again later",
	errcode.ErrGenerationFailed:       "answer generation failed",
}

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

// Message returns the default message for an errcode value.
func Message(code int) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return defaultMessages[errcode.ErrUnknown]
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes a failure with code. An empty message falls back to Message(code).
func Error(c *gin.Context, code int, message string) {
	if message == "" {
		message = Message(code)
	}
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}
