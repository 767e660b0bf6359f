package bizerror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"reqflow/misc"

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
			err = errors.New(fmt.Sprintf("%s", ret))
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

func HandleError(c *gin.Context, err error) {
	logrus.Error(err)

	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	if bizErr, ok := genericErr.(BizError); ok {
		respond := bizErr.Respond()
		c.JSON(respond.Status, &misc.ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data})
		c.Abort()
		return
	}

	// bad request: io.EOF (no body)
	if errors.Is(genericErr, io.EOF) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"})
		c.Abort()
		return
	}
	// bad request: json syntax error
	if syntaxErr, ok := genericErr.(*json.SyntaxError); ok {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()})
		c.Abort()
		return
	}
	// validation failed
	if validationErr, ok := genericErr.(validator.ValidationErrors); ok {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()})
		c.Abort()
		return
	}

	if errors.Is(genericErr, ErrUnauthenticated) {
		c.JSON(http.StatusUnauthorized, &misc.ErrorBody{Code: "common.unauthenticated", Message: "unauthenticated"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrForbidden) {
		c.JSON(http.StatusForbidden, &misc.ErrorBody{Code: "security.forbidden", Message: "access forbidden"})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrInvalidState) {
		c.JSON(http.StatusConflict, &misc.ErrorBody{Code: "approval.invalid_state", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrNoApproverFound) {
		c.JSON(http.StatusConflict, &misc.ErrorBody{Code: "approval.no_approver_found", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrEmptyLineItems) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "request.empty_line_items", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrStepOrderInvalid) || errors.Is(genericErr, ErrStepMisconfigured) ||
		errors.Is(genericErr, ErrStepStatusMissing) || errors.Is(genericErr, ErrUnknownApprovalLogic) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "workflow.invalid_definition", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrUnknownFormKind) || errors.Is(genericErr, ErrReturnTargetUnknown) {
		c.JSON(http.StatusBadRequest, &misc.ErrorBody{Code: "common.bad_param", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrInvalidPassword) {
		c.JSON(http.StatusUnauthorized, &misc.ErrorBody{Code: "security.invalid_password", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, ErrWorkflowIsReferenced) {
		c.JSON(http.StatusConflict, &misc.ErrorBody{Code: "workflow.referenced", Message: genericErr.Error()})
		c.Abort()
		return
	}
	if errors.Is(genericErr, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, &misc.ErrorBody{Code: "common.record_not_found", Message: "record not found"})
		c.Abort()
		return
	}

	c.JSON(http.StatusInternalServerError, &misc.ErrorBody{Code: "common.internal_server_error", Message: err.Error()})
	c.Abort()
}
