package domain

// Ключи метаданных checkout-сессии, по которым подтверждение связывается с покупкой.
const (
	MetadataUserID     = "user_id"
	MetadataStreamID   = "stream_id"
	MetadataAmountPaid = "amount_paid"
	MetadataCurrency   = "currency"
)

// SessionStatus состояние checkout-сессии у платежного провайдера.
type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

// PaymentStatus статус оплаты внутри checkout-сессии.
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// CheckoutSession представление сессии оплаты у провайдера.
type CheckoutSession struct {
	ID            string
	URL           string
	Status        SessionStatus
	PaymentStatus PaymentStatus
	AmountTotal   int64
	Currency      string
	Metadata      map[string]string
}

// IsPaid возвращает true, если провайдер подтвердил оплату.
func (s *CheckoutSession) IsPaid() bool {
	return s.Status == SessionStatusComplete && s.PaymentStatus == PaymentStatusPaid
}

// CheckoutRequest параметры создания сессии оплаты за одну трансляцию.
type CheckoutRequest struct {
	UserID         string
	StreamID       string
	StreamTitle    string
	Price          Money
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// Metadata возвращает метаданные, передаваемые провайдеру без изменений.
func (r CheckoutRequest) Metadata() map[string]string {
	return map[string]string{
		MetadataUserID:     r.UserID,
		MetadataStreamID:   r.StreamID,
		MetadataAmountPaid: formatInt(r.Price.Amount),
		MetadataCurrency:   r.Price.Currency,
	}
}

// CheckoutResult результат оркестрации покупки.
type CheckoutResult struct {
	RedirectURL     string `json:"redirect_url"`
	SessionID       string `json:"session_id,omitempty"`
	AlreadyEntitled bool   `json:"already_entitled,omitempty"`
}

// ConfirmationInput вход обработчика подтверждения оплаты.
type ConfirmationInput struct {
	SessionID string
	StreamID  string
}
