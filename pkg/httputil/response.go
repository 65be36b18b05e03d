package httputil

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/labreport/pkg/errors"
	"github.com/jwalitptl/labreport/pkg/validator"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response wraps all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: StatusSuccess,
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  StatusError,
		Message: message,
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data))
}

// RespondWithError sends an error response and records err on the context
// for the error middleware to log.
func RespondWithError(c *gin.Context, err error) {
	RespondWithErrorData(c, err, nil)
}

// RespondWithErrorData is RespondWithError with a payload, used when the
// client needs the current state alongside the failure.
func RespondWithErrorData(c *gin.Context, err error, data interface{}) {
	_ = c.Error(err)
	status, resp := ErrorResponse(err)
	resp.Data = data
	c.JSON(status, resp)
}

// ErrorResponse maps err onto a status code and envelope. Errors that are
// not *errors.AppError are reported as internal without their text.
func ErrorResponse(err error) (int, *Response) {
	if verrs, ok := validator.FromBinding(err); ok {
		return http.StatusBadRequest, &Response{
			Status:  StatusError,
			Message: verrs.First().Message,
			Errors:  verrs,
		}
	}

	appErr, ok := errors.As(err)
	if !ok {
		return http.StatusInternalServerError, NewErrorResponse("internal server error")
	}
	return appErr.StatusCode(), &Response{
		Status:  StatusError,
		Message: appErr.Message,
		Errors:  appErr.Details,
	}
}

// BindJSON decodes the request body into obj. Failed binding rules come back
// as a validation error listing every field; anything else is a bad request.
func BindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		if verrs, ok := validator.FromBinding(err); ok {
			return errors.NewValidation(verrs.First().Message, verrs)
		}
		return errors.NewBadRequest("invalid request body", err)
	}
	return nil
}

// RespondWithFile sends data as a download named filename.
func RespondWithFile(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, contentType, data)
}
