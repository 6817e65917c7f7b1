package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeGone          ErrorCode = "GONE"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeUpstream      ErrorCode = "UPSTREAM_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы errors.Is работал с
// пакетными переменными даже после Wrap.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Internal оборачивает инфраструктурную ошибку; клиент увидит только общее сообщение.
func Internal(err error) *AppError {
	return Wrap(err, ErrCodeInternal, "внутренняя ошибка сервера")
}

func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func NotFound(message string) *AppError {
	return New(ErrCodeNotFound, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func Gone(message string) *AppError {
	return New(ErrCodeGone, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeGone:
		return http.StatusGone
	case ErrCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeConflict
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для нетипизированных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

var (
	ErrUnauthorized = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden    = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidKey   = New(ErrCodeUnauthorized, "неверный API ключ")

	ErrContentNotFound      = New(ErrCodeNotFound, "материал не найден")
	ErrBlockNotFound        = New(ErrCodeNotFound, "блок не найден")
	ErrVersionNotFound      = New(ErrCodeNotFound, "версия не найдена")
	ErrPlanNotFound         = New(ErrCodeNotFound, "тариф не найден")
	ErrProposalNotFound     = New(ErrCodeNotFound, "предложение не найдено")
	ErrProposalItemNotFound = New(ErrCodeNotFound, "позиция предложения не найдена")
	ErrPurchaseNotFound     = New(ErrCodeNotFound, "покупка не найдена")
	ErrSettingNotFound      = New(ErrCodeNotFound, "настройка не найдена")
	ErrAlertNotFound        = New(ErrCodeNotFound, "оповещение не найдено")
	ErrTeamNotFound         = New(ErrCodeNotFound, "команда не найдена")
	ErrMemberNotFound       = New(ErrCodeNotFound, "участник команды не найден")
	ErrInvitationNotFound   = New(ErrCodeNotFound, "приглашение не найдено")
	ErrTimesheetNotFound    = New(ErrCodeNotFound, "табель не найден")
	ErrEntryNotFound        = New(ErrCodeNotFound, "запись табеля не найдена")
	ErrKeyNotFound          = New(ErrCodeNotFound, "ключ перевода не найден")
	ErrTranslationNotFound  = New(ErrCodeNotFound, "перевод не найден")
	ErrTutorialNotFound     = New(ErrCodeNotFound, "урок не найден")
	ErrStepNotFound         = New(ErrCodeNotFound, "шаг урока не найден")
	ErrProgressNotFound     = New(ErrCodeNotFound, "прогресс по уроку не найден")
	ErrURLNotFound          = New(ErrCodeNotFound, "ссылка не найдена")
	ErrURLGone              = New(ErrCodeGone, "ссылка больше не доступна")
	ErrRedirectNotFound     = New(ErrCodeNotFound, "правило перенаправления не найдено")
	ErrWorkflowNotFound     = New(ErrCodeNotFound, "сценарий не найден")
	ErrExecutionNotFound    = New(ErrCodeNotFound, "запуск сценария не найден")
	ErrScheduleNotFound     = New(ErrCodeNotFound, "расписание не найдено")
	ErrFileNotFound         = New(ErrCodeNotFound, "файл не найден")
	ErrPortfolioNotFound    = New(ErrCodeNotFound, "работа не найдена")
	ErrSubscriptionNotFound = New(ErrCodeNotFound, "подписка не найдена")
	ErrAPIKeyNotFound       = New(ErrCodeNotFound, "API ключ не найден")
	ErrProjectNotFound      = New(ErrCodeNotFound, "аудиопроект не найден")
	ErrTrackNotFound        = New(ErrCodeNotFound, "дорожка не найдена")
)
