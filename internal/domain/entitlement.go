package domain

import "time"

// Entitlement бессрочное право пользователя на просмотр платной трансляции.
// Создается только после подтвержденной оплаты, никогда не изменяется и не удаляется.
type Entitlement struct {
	UserID           string    `json:"user_id" db:"user_id"`
	StreamID         string    `json:"stream_id" db:"stream_id"`
	AmountPaid       Money     `json:"amount_paid"`
	GrantedAt        time.Time `json:"granted_at" db:"granted_at"`
	PaymentSessionID string    `json:"payment_session_id" db:"payment_session_id"`
}
