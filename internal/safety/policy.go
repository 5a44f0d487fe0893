package safety

import (
	"github.com/nkuznetsov/linkcut/internal/models"
)

// blockConfidenceThreshold — порог уверенности, выше которого вердикт
// "malicious" блокирует создание для непривилегированного вызывающего.
const blockConfidenceThreshold = 0.85

// Decision — результат применения политики к вердикту.
type Decision struct {
	Flagged     bool
	FlagReason  *string
	ShouldBlock bool
}

// Decide сворачивает вердикт в решение. Флаг информационный и ставится
// независимо от привилегий; блокируется только уверенный malicious-вердикт
// для непривилегированного вызывающего. Привилегированный создаёт ссылку
// помеченной, но не блокируется.
func Decide(verdict *models.SafetyVerdict, privileged bool) Decision {
	decision := Decision{
		Flagged: verdict.Flagged,
	}

	if verdict.Flagged && verdict.Reason != "" {
		reason := verdict.Reason
		decision.FlagReason = &reason
	}

	if verdict.Category == models.CategoryMalicious &&
		verdict.Confidence > blockConfidenceThreshold &&
		!privileged {
		decision.ShouldBlock = true
	}

	return decision
}
