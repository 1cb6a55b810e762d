package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/welk/internal/api/shared"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/domain/srs"
	"github.com/phrazzld/welk/internal/importer"
	"github.com/phrazzld/welk/internal/service/auth"
	"github.com/phrazzld/welk/internal/session"
	"github.com/phrazzld/welk/internal/store"
)

// errActionRejected is returned when the session refuses an action in its
// current state (for example a flip while editing).
var errActionRejected = errors.New("action rejected")

// domainValidationErrors are the entity validation failures a client can cause.
var domainValidationErrors = []error{
	domain.ErrValidation,
	domain.ErrInvalidID,
	domain.ErrEmptyUsername,
	domain.ErrInvalidUsername,
	domain.ErrPasswordTooShort,
	domain.ErrPasswordTooLong,
	domain.ErrEmptyPassword,
	domain.ErrDeckNameEmpty,
	domain.ErrCardContentEmpty,
	domain.ErrInvalidReviewGrade,
	srs.ErrInvalidGrade,
	importer.ErrUnsupportedFormat,
	importer.ErrEmptyWorkbook,
}

func isValidationError(err error) bool {
	for _, target := range domainValidationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotSignedIn),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	case errors.Is(err, session.ErrDeckNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrNoCurrentCard),
		errors.Is(err, session.ErrNotEditingDraft),
		errors.Is(err, errActionRejected):
		return http.StatusConflict

	case errors.Is(err, store.ErrInvalidEntity),
		isValidationError(err):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, auth.ErrNotSignedIn),
		errors.Is(err, domain.ErrUnauthorized):
		return "Not signed in"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return "Invalid token"

	case errors.Is(err, session.ErrDeckNotFound),
		errors.Is(err, store.ErrDeckNotFound):
		return "Deck not found"
	case errors.Is(err, store.ErrCardNotFound):
		return "Card not found"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrUsernameExists):
		return "Username already exists"

	case errors.Is(err, session.ErrNoSession):
		return "No active study session"
	case errors.Is(err, session.ErrNoCurrentCard):
		return "No card is selected"
	case errors.Is(err, session.ErrNotEditingDraft):
		return "No new card is being edited"
	case errors.Is(err, errActionRejected):
		return "Action not allowed now"

	case errors.Is(err, domain.ErrInvalidReviewGrade),
		errors.Is(err, srs.ErrInvalidGrade):
		return "Invalid grade"
	case errors.Is(err, importer.ErrUnsupportedFormat):
		return "Unsupported file format"
	case errors.Is(err, importer.ErrEmptyWorkbook):
		return "Workbook has no sheets"

	case isValidationError(err):
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return SanitizeValidationError(err)
		}
		// Domain validation messages describe the input, not the internals.
		return capitalize(rootCause(err).Error())
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and message mapped from err.
// A non-empty fallback replaces the generic 500 message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError turns validator output into a short message that
// names the first failing field.
func SanitizeValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Validation error"
	}
	fe := ve[0]
	return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "invalid id"
	default:
		return "validation failed"
	}
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
