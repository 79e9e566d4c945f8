package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"homeclimate/internal/types"
)

// ValidationError describes one failed field.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects blocking errors and non-blocking warnings.
type ValidationResult struct {
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// IsValid reports whether no blocking errors were found.
func (r ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator wraps go-playground/validator with the domain tags:
//
//	is_timezone  IANA zone name
//	plan_type    TOU, ULO or TIERED (case-insensitive)
//	housing_type dorm, apartment, house, basement or other
//	device_id    identifier usable as an MQTT topic segment
//	risk_level   UNKNOWN, LOW, MEDIUM or HIGH
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator reporting fields by their JSON names.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("core: registering %s: %v", tag, err))
		}
	}
	must("is_timezone", validateTimezone)
	must("plan_type", validatePlanType)
	must("housing_type", validateHousingType)
	must("device_id", validateDeviceID)
	must("risk_level", validateRiskLevel)

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct returns nil or an *types.AppError whose code matches the
// first failure and whose details carry every failure under
// "validation_errors".
func (v *Validator) ValidateStruct(s any) error {
	result := v.ValidateStructWithWarnings(s)
	if result.IsValid() {
		return nil
	}
	first := result.Errors[0]
	return types.NewAppErrorWithDetails(
		types.ErrorCode(first.Code),
		first.Message,
		nil,
		map[string]any{"validation_errors": result.Errors},
	)
}

// ValidateStructWithWarnings runs validation and returns every failure.
func (v *Validator) ValidateStructWithWarnings(s any) ValidationResult {
	var result ValidationResult

	err := v.validate.Struct(s)
	if err == nil {
		return result
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		if v.logger != nil {
			v.logger.Warn("validator rejected input", "error", err)
		}
		result.Errors = append(result.Errors, ValidationError{
			Field:   "",
			Code:    string(types.ErrCodeValidationInvalidBody),
			Message: "request could not be validated",
		})
		return result
	}

	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, ValidationError{
			Field:   fieldPath(fe),
			Code:    tagToErrorCode(fe.Tag()),
			Message: fieldMessage(fe),
		})
	}
	return result
}

// tagToErrorCode maps a failed tag to the public error code.
func tagToErrorCode(tag string) string {
	switch tag {
	case "required", "required_with", "required_without":
		return string(types.ErrCodeValidationMissingField)
	case "gte", "lte", "gt", "lt", "min", "max":
		return string(types.ErrCodeValidationOutOfRange)
	case "gtefield", "ltefield":
		return string(types.ErrCodeValidationComfortBand)
	case "plan_type":
		return string(types.ErrCodeValidationInvalidPlan)
	case "device_id":
		return string(types.ErrCodeValidationInvalidDevice)
	case "is_timezone", "datetime":
		return string(types.ErrCodeValidationInvalidTime)
	default:
		return string(types.ErrCodeValidationInvalidBody)
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be below %s", field, jsonNameOf(fe.Param()))
	case "ltefield":
		return fmt.Sprintf("%s must not be above %s", field, jsonNameOf(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// fieldPath drops the top-level struct name from the namespace, leaving the
// JSON path (e.g. "comfort.max_c").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	default:
		return name
	}
}

// jsonNameOf converts a Go field name used as a cross-field parameter to
// snake case for messages.
func jsonNameOf(goName string) string {
	var b strings.Builder
	for i, r := range goName {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validateTimezone(fl validator.FieldLevel) bool {
	tz := fl.Field().String()
	if tz == "" {
		return true
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

func validatePlanType(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	return types.PlanType(strings.ToUpper(s)).IsValid()
}

func validateHousingType(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	return types.HousingType(strings.ToLower(s)).IsValid()
}

func validateDeviceID(fl validator.FieldLevel) bool {
	return types.ValidDeviceID(fl.Field().String())
}

func validateRiskLevel(fl validator.FieldLevel) bool {
	switch types.RiskLevel(strings.ToUpper(fl.Field().String())) {
	case "", types.RiskUnknown, types.RiskLow, types.RiskMedium, types.RiskHigh:
		return true
	}
	return false
}
