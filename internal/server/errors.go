package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	authdomain "github.com/smallbiznis/rfacto/internal/auth/domain"
	"github.com/smallbiznis/rfacto/internal/authorization"
	backupdomain "github.com/smallbiznis/rfacto/internal/backup/domain"
	claimdomain "github.com/smallbiznis/rfacto/internal/claim/domain"
	filedomain "github.com/smallbiznis/rfacto/internal/claimfile/domain"
	"github.com/smallbiznis/rfacto/internal/export"
	"github.com/smallbiznis/rfacto/internal/importer"
	projectdomain "github.com/smallbiznis/rfacto/internal/project/domain"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	"github.com/smallbiznis/rfacto/internal/storage"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	memberdomain "github.com/smallbiznis/rfacto/internal/teammember/domain"
	"gorm.io/gorm"
)

// forbiddenMessage is shown to callers whose role is below the route minimum.
const forbiddenMessage = "Droits insuffisants pour cette opération."

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if isDuplicateError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "duplicate",
			Message: "already exists",
			Errors: []ValidationError{
				{
					Field:   strings.TrimPrefix(code, "duplicate_"),
					Code:    code,
					Message: "already exists",
				},
			},
		}
	}

	switch {
	case isUnauthenticatedError(err):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: unauthenticatedReason(err),
		}
	case errors.Is(err, authdomain.ErrInsufficientScopes):
		return http.StatusForbidden, errorPayload{
			Type:    "insufficient_scopes",
			Message: "insufficient scopes",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: forbiddenMessage,
		}
	case errors.Is(err, claimdomain.ErrDuplicateMilestone):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "a milestone with this step already exists for the project",
		}
	case errors.Is(err, backupdomain.ErrBusy):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "another import or reset is running",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, filedomain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{
			Type:    "file_too_large",
			Message: "file too large",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, authdomain.ErrNotConfigured):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the response type and a stable code for the
// access log.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if payload.Type == "unauthorized" {
		code = payload.Message
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, export.ErrNoClaims),
		errors.Is(err, importer.ErrEmptyFile),
		errors.Is(err, backupdomain.ErrInvalidBackup):
		return true
	case isClaimValidationError(err),
		isProjectValidationError(err),
		isTaxValidationError(err),
		isSettingsValidationError(err),
		isMemberValidationError(err),
		isFileValidationError(err),
		isActivityValidationError(err):
		return true
	default:
		return false
	}
}

func isDuplicateError(err error) bool {
	return errors.Is(err, projectdomain.ErrDuplicateCode) ||
		errors.Is(err, taxdomain.ErrDuplicateProvince) ||
		errors.Is(err, memberdomain.ErrDuplicateEmail)
}

func isUnauthenticatedError(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrMissingBearer),
		errors.Is(err, authdomain.ErrTokenExpired),
		errors.Is(err, authdomain.ErrTokenInvalid),
		errors.Is(err, authdomain.ErrInvalidSignature),
		errors.Is(err, authdomain.ErrUnexpectedAudience),
		errors.Is(err, authdomain.ErrIssuerMismatch),
		errors.Is(err, authdomain.ErrEmailMissing):
		return true
	default:
		return false
	}
}

// unauthenticatedReason exposes the token failure so clients can tell an
// expired session from a malformed one.
func unauthenticatedReason(err error) string {
	for _, reason := range []error{
		authdomain.ErrMissingBearer,
		authdomain.ErrTokenExpired,
		authdomain.ErrInvalidSignature,
		authdomain.ErrUnexpectedAudience,
		authdomain.ErrIssuerMismatch,
		authdomain.ErrEmailMissing,
		authdomain.ErrTokenInvalid,
	} {
		if errors.Is(err, reason) {
			return reason.Error()
		}
	}
	return "unauthorized"
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, claimdomain.ErrNotFound),
		errors.Is(err, projectdomain.ErrNotFound),
		errors.Is(err, taxdomain.ErrNotFound),
		errors.Is(err, memberdomain.ErrNotFound),
		errors.Is(err, filedomain.ErrNotFound),
		errors.Is(err, filedomain.ErrClaimMissing),
		errors.Is(err, storage.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, export.ErrNoClaims):
		return "invalid_claim_ids"
	case errors.Is(err, importer.ErrEmptyFile):
		return "invalid_file"
	case errors.Is(err, backupdomain.ErrInvalidBackup):
		return "invalid_backup"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if code == filedomain.ErrFileRequired.Error() {
		return "file"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_claim_ids":
		return "no claim selected"
	case "invalid_file":
		return "the file has no usable rows"
	case "file_required":
		return "no file received"
	default:
		return "invalid value"
	}
}

func isClaimValidationError(err error) bool {
	switch {
	case errors.Is(err, claimdomain.ErrInvalidID),
		errors.Is(err, claimdomain.ErrInvalidType):
		return true
	default:
		return false
	}
}

func isProjectValidationError(err error) bool {
	switch {
	case errors.Is(err, projectdomain.ErrInvalidID),
		errors.Is(err, projectdomain.ErrInvalidCode),
		errors.Is(err, projectdomain.ErrInvalidLabel):
		return true
	default:
		return false
	}
}

func isTaxValidationError(err error) bool {
	switch {
	case errors.Is(err, taxdomain.ErrInvalidID),
		errors.Is(err, taxdomain.ErrInvalidProvince),
		errors.Is(err, taxdomain.ErrInvalidTaxRate):
		return true
	default:
		return false
	}
}

func isSettingsValidationError(err error) bool {
	switch {
	case errors.Is(err, settingsdomain.ErrInvalidDelay),
		errors.Is(err, settingsdomain.ErrInvalidDelayUnit),
		errors.Is(err, settingsdomain.ErrInvalidRows):
		return true
	default:
		return false
	}
}

func isMemberValidationError(err error) bool {
	switch {
	case errors.Is(err, memberdomain.ErrInvalidID),
		errors.Is(err, memberdomain.ErrInvalidEmail),
		errors.Is(err, memberdomain.ErrInvalidRole):
		return true
	default:
		return false
	}
}

func isFileValidationError(err error) bool {
	switch {
	case errors.Is(err, filedomain.ErrInvalidID),
		errors.Is(err, filedomain.ErrFileRequired):
		return true
	default:
		return false
	}
}

func isActivityValidationError(err error) bool {
	switch {
	case errors.Is(err, activitydomain.ErrInvalidPageToken),
		errors.Is(err, activitydomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}
