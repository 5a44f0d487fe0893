// Package webhook реализует HMAC-SHA256 подпись тела click-событий.
// Диспетчер подписывает исходящий job, обработчик webhook проверяет подпись
// тем же общим секретом.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader — заголовок, в котором передаётся подпись.
// Провайдер очереди обязан пробросить его в callback без изменений.
const SignatureHeader = "X-Click-Signature"

type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign возвращает hex HMAC-SHA256 от сырого тела запроса.
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает подпись за константное время.
func (s *Signer) Verify(body []byte, signature string) bool {
	expected := s.Sign(body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
