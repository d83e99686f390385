package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// IdempotencyKeyHeader lets clients supply the settlement idempotency key as a header
const IdempotencyKeyHeader = "Idempotency-Key"

// SetupValidator makes gin's validator name fields after their json (or form)
// tag and registers notblank, which rejects whitespace-only strings.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		}
		return name
	}
	return ""
}

// HandleValidationError answers 400 for a request that failed binding, or
// 413 when the body was cut off by BodyLimit.
func HandleValidationError(c *gin.Context, err error) {
	reqID := logger.GetRequestID(c.Request.Context())

	var tooLarge *http.MaxBytesError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(dto.ErrCodeRequestTooLarge,
			"Request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", reqID))
	case errors.As(err, &invalid):
		details := make([]dto.ValidationDetail, len(invalid))
		for i, fe := range invalid {
			details[i] = dto.ValidationDetail{Field: fe.Field(), Message: describe(fe)}
		}
		c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse("Request validation failed", reqID, details))
	default:
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(dto.ErrCodeInvalidJSON, "Malformed request body", reqID))
	}
}

// describe turns one failed rule into a client-facing sentence
func describe(fe validator.FieldError) string {
	param := fe.Param()
	kind := fe.Type().Kind()

	switch fe.Tag() {
	case "required", "notblank":
		return "This field is required"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + param
	case "datetime":
		return "Must be a date in the format " + param
	case "gte":
		return "Must be greater than or equal to " + param
	case "min", "max":
		bound := "at least "
		if fe.Tag() == "max" {
			bound = "at most "
		}
		switch kind {
		case reflect.String:
			return "Must be " + bound + param + " characters"
		case reflect.Slice:
			return "Must contain " + bound + param + " items"
		}
		return "Must be " + bound + param
	}
	return "Invalid value"
}
