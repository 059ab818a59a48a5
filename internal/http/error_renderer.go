package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	domainauth "github.com/target/projectdesk/internal/domain/auth"
	"github.com/target/projectdesk/internal/domain/model"
	apperrors "github.com/target/projectdesk/internal/errors"
	"github.com/target/projectdesk/internal/service"
)

// errorMapping is the HTTP rendering of one error kind.
type errorMapping struct {
	Status  int
	ErrCode string
	// Message replaces err.Error() in the body when set, so internals never leak.
	Message string
}

// Fixed bodies for the admission taxonomy.
var (
	mapSessionUnavailable = errorMapping{http.StatusServiceUnavailable, "session_unavailable", "session store unavailable"}
	mapRateLimited        = errorMapping{http.StatusTooManyRequests, "rate_limited", "rate limit exceeded"}
	mapUnauthenticated    = errorMapping{http.StatusUnauthorized, "authentication_required", "authentication required"}
	mapBadCredentials     = errorMapping{http.StatusUnauthorized, "invalid_credentials", "incorrect email or password"}
)

// classifyError maps err to a status and error code. fallback is the code used for unexpected failures.
func classifyError(err error, fallback string) errorMapping {
	switch {
	case errors.Is(err, domainauth.ErrSessionUnavailable):
		return mapSessionUnavailable
	case errors.Is(err, domainauth.ErrRateLimited):
		return mapRateLimited
	case errors.Is(err, domainauth.ErrUnauthenticated):
		return mapUnauthenticated
	case errors.Is(err, domainauth.ErrIncorrectCredentials):
		return mapBadCredentials
	case errors.Is(err, service.ErrCurrentPasswordRequired):
		return errorMapping{Status: http.StatusBadRequest, ErrCode: "current_password_required"}
	case errors.Is(err, service.ErrInvalidCurrentPassword):
		return errorMapping{Status: http.StatusUnauthorized, ErrCode: "invalid_current_password"}
	case errors.Is(err, service.ErrEmailManagedByProvider):
		return errorMapping{Status: http.StatusForbidden, ErrCode: "email_managed_by_provider"}
	case errors.Is(err, service.ErrInvalidSSOState):
		return errorMapping{Status: http.StatusBadRequest, ErrCode: "invalid_state"}
	case errors.Is(err, service.ErrSSOIdentityIncomplete):
		return errorMapping{Status: http.StatusForbidden, ErrCode: "sso_identity_rejected"}
	case errors.Is(err, model.ErrAccountExists):
		return errorMapping{Status: http.StatusConflict, ErrCode: "account_exists", Message: "an account with this email already exists"}
	case errors.Is(err, model.ErrAccountNotFound):
		return errorMapping{Status: http.StatusNotFound, ErrCode: "account_not_found"}
	case errors.Is(err, model.ErrProjectNotFound):
		return errorMapping{Status: http.StatusNotFound, ErrCode: "project_not_found"}
	}

	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		return errorMapping{Status: http.StatusBadRequest, ErrCode: "validation_failed"}
	case apperrors.ErrCodeNotFound:
		return errorMapping{Status: http.StatusNotFound, ErrCode: "not_found"}
	case apperrors.ErrCodeConflict, apperrors.ErrCodeForeignKey:
		return errorMapping{Status: http.StatusConflict, ErrCode: "conflict"}
	case apperrors.ErrCodeTimeout:
		return errorMapping{Status: http.StatusGatewayTimeout, ErrCode: "timeout", Message: "request timed out"}
	case apperrors.ErrCodeCanceled:
		return errorMapping{Status: http.StatusServiceUnavailable, ErrCode: "canceled", Message: "request canceled"}
	case apperrors.ErrCodeInternal:
		return errorMapping{Status: http.StatusInternalServerError, ErrCode: fallback, Message: "internal error"}
	}

	if looksLikeValidation(err) {
		return errorMapping{Status: http.StatusBadRequest, ErrCode: "validation_failed"}
	}
	return errorMapping{Status: http.StatusInternalServerError, ErrCode: fallback, Message: "internal error"}
}

// ErrorWriter renders service errors as JSON and logs them at a level matching their severity.
type ErrorWriter struct {
	Logger *slog.Logger
}

func (ew ErrorWriter) logger() *slog.Logger {
	if ew.Logger != nil {
		return ew.Logger
	}
	return slog.Default()
}

// Write renders err. fallback is the error code used for unexpected (5xx) failures.
func (ew ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	m := classifyError(err, fallback)

	level := slog.LevelDebug
	if m.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	ew.logger().Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", m.Status,
		"code", m.ErrCode,
		"error", err)

	var rl *domainauth.RateLimitedError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", retryAfterSeconds(rl.RetryAfter))
	}

	msg := m.Message
	if msg == "" {
		msg = publicMessage(err)
	}
	WriteJSON(w, m.Status, map[string]string{"error": m.ErrCode, "message": msg})
}

// publicMessages are sentinels whose text is shown instead of the wrapped chain.
var publicMessages = []error{ //nolint:gochecknoglobals // read-only lookup
	service.ErrCurrentPasswordRequired,
	service.ErrInvalidCurrentPassword,
	service.ErrEmailManagedByProvider,
	service.ErrInvalidSSOState,
	service.ErrSSOIdentityIncomplete,
	model.ErrAccountNotFound,
	model.ErrProjectNotFound,
}

// publicMessage prefers an AppError message or a known sentinel over the full wrapped chain.
func publicMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	for _, s := range publicMessages {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// Plain errors carrying one of these phrases are input problems even when a
// service forgot to wrap them in apperrors.Validation.
var validationPhrases = []string{ //nolint:gochecknoglobals // read-only
	"cannot be empty",
	"cannot exceed",
	"at least one field must be updated",
	"is not a valid address",
	"is required",
	"must be at least",
}

func looksLikeValidation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return slices.ContainsFunc(validationPhrases, func(p string) bool { return strings.Contains(msg, p) })
}
