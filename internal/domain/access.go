package domain

// Tier уровень подписки пользователя на платформе.
type Tier string

const (
	TierNone Tier = "none"
	TierPaid Tier = "paid"
)

// Requester пользователь, от имени которого выполняется запрос.
// Пустой UserID означает анонимного зрителя.
type Requester struct {
	UserID string
}

// Anonymous возвращает анонимного зрителя.
func Anonymous() Requester {
	return Requester{}
}

// IsAuthenticated проверяет, что запрос выполнен вошедшим пользователем.
func (r Requester) IsAuthenticated() bool {
	return r.UserID != ""
}

// AccessReason объясняет, почему было принято решение о доступе. Используется в метриках и логах.
type AccessReason string

const (
	AccessReasonFreeStream   AccessReason = "free_stream"
	AccessReasonOwner        AccessReason = "owner"
	AccessReasonEntitlement  AccessReason = "entitlement"
	AccessReasonSubscription AccessReason = "subscription"
	AccessReasonAnonymous    AccessReason = "anonymous"
	AccessReasonNotPurchased AccessReason = "not_purchased"
)

// AccessDecision результат проверки доступа. Не сохраняется и не кешируется.
type AccessDecision struct {
	IsPaidStream bool         `json:"is_paid_stream"`
	HasAccess    bool         `json:"has_access"`
	Price        Money        `json:"price"`
	PreviewURL   *string      `json:"preview_url"`
	Reason       AccessReason `json:"-"`
}
