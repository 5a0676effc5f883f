package bizerror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = fmt.Errorf("%v", ret)
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

func HandleError(c *gin.Context, err error) {
	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	var bizErr BizError
	if errors.As(genericErr, &bizErr) {
		respond := bizErr.Respond()
		logrus.WithField("path", c.Request.URL.Path).Warn(genericErr)
		c.JSON(respond.Status, &ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data})
		c.Abort()
		return
	}

	status, body := translate(genericErr)
	if status >= http.StatusInternalServerError {
		logrus.WithField("path", c.Request.URL.Path).Error(genericErr)
	} else {
		logrus.WithField("path", c.Request.URL.Path).Warn(genericErr)
	}
	c.JSON(status, body)
	c.Abort()
}

func translate(err error) (int, *ErrorBody) {
	// bad request:  io.EOF (no body).
	if errors.Is(err, io.EOF) {
		return http.StatusBadRequest, &ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return http.StatusBadRequest, &ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()}
	}
	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, &ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()}
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, &ErrorBody{Code: "common.unauthenticated", Message: "unauthenticated"}
	case errors.Is(err, ErrInvalidEvent):
		return http.StatusBadRequest, &ErrorBody{Code: "workflow.invalid_event", Message: err.Error()}
	case errors.Is(err, ErrUnknownState):
		return http.StatusBadRequest, &ErrorBody{Code: "workflow.unknown_state", Message: err.Error()}
	case errors.Is(err, ErrStatusTransition):
		return http.StatusBadRequest, &ErrorBody{Code: "workflow.invalid_status_transition", Message: err.Error()}
	case errors.Is(err, ErrMissingEntityID):
		return http.StatusBadRequest, &ErrorBody{Code: "workflow.entity_id_required", Message: err.Error()}
	case errors.Is(err, ErrInvalidOrderBy):
		return http.StatusBadRequest, &ErrorBody{Code: "common.invalid_order_by", Message: err.Error()}
	case errors.Is(err, ErrDefinitionReferenced):
		return http.StatusBadRequest, &ErrorBody{Code: "workflow.definition_referenced", Message: err.Error()}
	case errors.Is(err, ErrLocked):
		return http.StatusBadRequest, &ErrorBody{Code: "common.conflict", Message: err.Error()}
	case errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound):
		return http.StatusNotFound, &ErrorBody{Code: "common.record_not_found", Message: "record not found"}
	}
	return http.StatusInternalServerError, &ErrorBody{Code: "common.internal_server_error", Message: err.Error()}
}
