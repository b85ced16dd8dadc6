package dialer

import "github.com/shaiso/Vocata/internal/domain"

// Описательные терминальные статусы целей, выставляемые обзвонщиком.
const (
	// StatusDeviceNotFound — линия кампании не найдена.
	StatusDeviceNotFound domain.LogStatus = "DEVICE NOT FOUND"

	// StatusNoOutboundFlow — у линии не привязан outbound-граф.
	StatusNoOutboundFlow domain.LogStatus = "NO OUTBOUND FLOW"

	// StatusDialFailed — оператор отклонил набор.
	StatusDialFailed domain.LogStatus = "DIAL FAILED"
)
