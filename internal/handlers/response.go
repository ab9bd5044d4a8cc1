package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"badminton_club/internal/apperr"
	"badminton_club/internal/billing"
)

// Response wraps every successful API reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// RequestValidator plugs go-playground/validator into echo's Context.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		if verrs, isValidation := err.(validator.ValidationErrors); isValidation && len(verrs) > 0 {
			f := verrs[0]
			return apperr.Validation("%s failed on the '%s' rule", f.Field(), f.Tag())
		}
		return apperr.Validation("%s", err.Error())
	}
	return nil
}

// bind decodes the request into req and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}

func parseDateParam(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperr.Validation("%s is required", name)
	}
	t, err := billing.ParseDate(value)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be a %s date, got %q", name, billing.DateLayout, value)
	}
	return t, nil
}

func parseIntParam(name, value string) (int, error) {
	if value == "" {
		return 0, apperr.Validation("%s is required", name)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, apperr.Validation("%s must be a number, got %q", name, value)
	}
	return n, nil
}

func parseBoolParam(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getStringFromContext(c echo.Context, key string) string {
	val, _ := c.Get(key).(string)
	return val
}
