package models

// Категории вердикта классификатора контента.
const (
	CategorySafe          = "safe"
	CategorySuspicious    = "suspicious"
	CategoryMalicious     = "malicious"
	CategoryInappropriate = "inappropriate"
	CategoryUnknown       = "unknown"
)

// SafetyVerdict — нормализованный вердикт внешнего классификатора.
// Отдельно не хранится, сворачивается в Link.Flagged/FlagReason.
type SafetyVerdict struct {
	IsSafe     bool    `json:"is_safe"`
	Flagged    bool    `json:"flagged"`
	Reason     string  `json:"reason"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"` // [0,1]
}
