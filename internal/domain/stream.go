package domain

// Stream представляет трансляцию из каталога стримов.
// Каталогом владеет сервис трансляций, здесь он только читается.
type Stream struct {
	ID         string  `json:"id"`
	OwnerID    string  `json:"owner_id"`
	Title      string  `json:"title"`
	IsLive     bool    `json:"is_live"`
	IsPaid     bool    `json:"is_paid"`
	Price      Money   `json:"price"`
	PreviewURL *string `json:"preview_url,omitempty"`
}

// IsOwnedBy проверяет, что пользователь является автором трансляции.
func (s *Stream) IsOwnedBy(userID string) bool {
	return userID != "" && s.OwnerID == userID
}

// CurrentPrice возвращает цену для будущих покупателей. Для бесплатных трансляций цена нулевая.
func (s *Stream) CurrentPrice() Money {
	if !s.IsPaid {
		return Money{Currency: s.Price.Currency}
	}
	return s.Price
}
