package domain

import (
	"errors"
	"fmt"
)

// Ошибки доступа к трансляциям
var (
	// ErrNotFound трансляция или пользователь не найдены
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate дубликат записи
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrUnauthenticated пользователь не аутентифицирован
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrStreamNotForSale трансляция бесплатная, покупать нечего
	ErrStreamNotForSale = errors.New("stream is not for sale")

	// ErrAlreadyEntitled у пользователя уже есть доступ. Мягкий успех, а не отказ.
	ErrAlreadyEntitled = errors.New("already entitled")

	// ErrCheckoutTimeout провайдер не ответил вовремя, запрос можно повторить
	ErrCheckoutTimeout = errors.New("checkout timed out")

	// ErrCheckoutFailed не удалось создать сессию оплаты
	ErrCheckoutFailed = errors.New("checkout failed")

	// ErrPaymentNotComplete оплата еще не завершена, подтверждение можно повторить позже
	ErrPaymentNotComplete = errors.New("payment not complete")

	// ErrSessionStreamMismatch сессия оплаты выписана на другую трансляцию
	ErrSessionStreamMismatch = errors.New("session stream mismatch")

	// ErrSessionUserMismatch сессия оплаты принадлежит другому пользователю
	ErrSessionUserMismatch = errors.New("session user mismatch")

	// ErrPaymentVerification не удалось проверить оплату у провайдера
	ErrPaymentVerification = errors.New("payment verification failed")
)

// NotFoundError представляет ошибку "не найдено"
type NotFoundError struct {
	Entity string
	ID     string
}

// Error реализует интерфейс error
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Entity, e.ID)
}

// Is проверяет, является ли ошибка ошибкой типа "не найдено"
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError создает новую ошибку "не найдено"
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// PaymentNotCompleteError сессия найдена, но оплата по ней не прошла.
// Terminal означает, что сессия истекла и ждать больше нечего.
type PaymentNotCompleteError struct {
	SessionID     string
	Status        SessionStatus
	PaymentStatus PaymentStatus
	Terminal      bool
}

// Error реализует интерфейс error
func (e *PaymentNotCompleteError) Error() string {
	return fmt.Sprintf("payment not complete for session %s (status: %s, payment_status: %s)",
		e.SessionID, e.Status, e.PaymentStatus)
}

// Is сопоставляет ошибку с ErrPaymentNotComplete
func (e *PaymentNotCompleteError) Is(target error) bool {
	return target == ErrPaymentNotComplete
}

// ExternalServiceError представляет ошибку внешнего сервиса
type ExternalServiceError struct {
	Service     string
	Code        string
	Message     string
	StatusCode  int
	OriginalErr error
}

// Error реализует интерфейс error
func (e *ExternalServiceError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s service error [%s]: %s: %v", e.Service, e.Code, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("%s service error [%s]: %s", e.Service, e.Code, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *ExternalServiceError) Unwrap() error {
	return e.OriginalErr
}

// NewExternalServiceError создает новую ошибку внешнего сервиса
func NewExternalServiceError(service, code, message string, statusCode int, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:     service,
		Code:        code,
		Message:     message,
		StatusCode:  statusCode,
		OriginalErr: err,
	}
}

// VerificationError оборачивает причину, по которой оплату не удалось проверить.
// errors.Is(err, ErrPaymentVerification) истинно для любой такой ошибки.
type VerificationError struct {
	SessionID string
	Reason    string
	Err       error
}

// Error реализует интерфейс error
func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment verification failed for session %s: %s: %v", e.SessionID, e.Reason, e.Err)
	}
	return fmt.Sprintf("payment verification failed for session %s: %s", e.SessionID, e.Reason)
}

// Unwrap возвращает оригинальную ошибку
func (e *VerificationError) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с ErrPaymentVerification
func (e *VerificationError) Is(target error) bool {
	return target == ErrPaymentVerification
}

// NewVerificationError создает ошибку проверки оплаты
func NewVerificationError(sessionID, reason string, err error) *VerificationError {
	return &VerificationError{SessionID: sessionID, Reason: reason, Err: err}
}
