package services

import (
	"fmt"

	"github.com/Dhoini/stream-access-service/internal/domain"
)

// Имена политик в конфигурации access.subscriptionPolicy
const (
	PolicyTierGrantsAccess = "tier_grants_access"
	PolicyPerStreamOnly    = "per_stream_only"
)

// TierPolicy решает, открывает ли уровень подписки платную трансляцию без покупки.
type TierPolicy func(tier domain.Tier) bool

// TierGrantsAccess платная подписка открывает все платные трансляции.
func TierGrantsAccess(tier domain.Tier) bool {
	return tier == domain.TierPaid
}

// PerStreamOnly каждая платная трансляция покупается отдельно, подписка не учитывается.
func PerStreamOnly(domain.Tier) bool {
	return false
}

// PolicyFromName возвращает политику по имени из конфигурации.
func PolicyFromName(name string) (TierPolicy, error) {
	switch name {
	case PolicyTierGrantsAccess:
		return TierGrantsAccess, nil
	case PolicyPerStreamOnly:
		return PerStreamOnly, nil
	default:
		return nil, fmt.Errorf("%w: unknown subscription policy %q", domain.ErrInvalidInput, name)
	}
}
