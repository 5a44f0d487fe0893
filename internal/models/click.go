package models

// ClickActionIncrement — единственное действие, которое принимает webhook кликов.
const ClickActionIncrement = "increment_click"

// ClickJob — эфемерное сообщение о клике для очереди.
// Идентичности не имеет: доставка at-least-once, дубликаты возможны и не детектируются.
type ClickJob struct {
	Action    string `json:"action"`
	ShortCode string `json:"short_code"`
	Timestamp int64  `json:"timestamp"`
}
