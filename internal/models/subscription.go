package models

import "time"

// Subscription подписка пользователя на платформу, как ее хранит биллинг.
// Сервис доступа только читает эту таблицу, чтобы определить уровень пользователя.
type Subscription struct {
	SubscriptionID   string     `db:"subscription_id" json:"subscription_id"`
	UserID           string     `db:"user_id" json:"user_id"`
	PlanID           string     `db:"plan_id" json:"plan_id"`
	Status           string     `db:"status" json:"status"` // active, trialing, past_due, canceled
	StripeCustomerID string     `db:"stripe_customer_id" json:"stripe_customer_id"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	ExpiresAt        *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CanceledAt       *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
}

// IsActiveAt проверяет, дает ли подписка платный уровень в момент now.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	if s.Status != "active" && s.Status != "trialing" {
		return false
	}
	return s.ExpiresAt == nil || now.Before(*s.ExpiresAt)
}
