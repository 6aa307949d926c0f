package services

import (
	"net/url"
	"strings"

	"github.com/Dhoini/stream-access-service/internal/domain"
)

// Параметры, которые провайдер добавляет к URL возврата после оплаты
const (
	ReturnParamAccess    = "access"
	ReturnParamSessionID = "session_id"

	returnAccessGranted = "granted"
)

// ParseReturnParams разбирает параметры возврата со страницы оплаты.
// Подтверждать нужно только при access=granted и непустом session_id. Любая другая комбинация
// (отмена оплаты, прямой заход на страницу) означает, что подтверждать нечего, и ошибкой не является.
func ParseReturnParams(values url.Values, streamID string) (domain.ConfirmationInput, bool) {
	if values.Get(ReturnParamAccess) != returnAccessGranted {
		return domain.ConfirmationInput{}, false
	}
	sessionID := strings.TrimSpace(values.Get(ReturnParamSessionID))
	if sessionID == "" || streamID == "" {
		return domain.ConfirmationInput{}, false
	}
	return domain.ConfirmationInput{SessionID: sessionID, StreamID: streamID}, true
}
