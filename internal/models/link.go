package models

import (
	"time"
)

// Link — запись короткой ссылки (system of record в PostgreSQL).
type Link struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	Owner       *string    `json:"owner,omitempty"` // nil — анонимная ссылка
	Clicks      int64      `json:"clicks"`
	Flagged     bool       `json:"flagged"`
	FlagReason  *string    `json:"flag_reason,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"` // nil — не истекает
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Expired сообщает, истёк ли срок жизни ссылки.
// Проверяется только на пути чтения: фонового процесса очистки нет.
func (l *Link) Expired() bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(time.Now())
}

type CreateLinkInput struct {
	OriginalURL string  `json:"original_url" binding:"required"`
	ExpiresIn   *int    `json:"expires_in,omitempty"` // минуты
	CustomCode  *string `json:"custom_code,omitempty"`
	Owner       *string `json:"-"`
	Privileged  bool    `json:"-"`
}

type UpdateLinkInput struct {
	CustomCode *string `json:"custom_code,omitempty"`
	ExpiresIn  *int    `json:"expires_in,omitempty"` // 0 — снять срок жизни
	Owner      *string `json:"-"`
	Privileged bool    `json:"-"`
}

type LinkStats struct {
	ShortCode  string     `json:"short_code"`
	Clicks     int64      `json:"clicks"`
	Flagged    bool       `json:"flagged"`
	FlagReason *string    `json:"flag_reason,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}
