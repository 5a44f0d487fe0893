package safety

import (
	"testing"

	"github.com/nkuznetsov/linkcut/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecide проверяет матрицу решений политики блокировки
func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		verdict     *models.SafetyVerdict
		privileged  bool
		wantBlock   bool
		wantFlagged bool
	}{
		{
			name: "безопасный URL проходит",
			verdict: &models.SafetyVerdict{
				IsSafe:     true,
				Category:   models.CategorySafe,
				Confidence: 0.99,
			},
			wantBlock:   false,
			wantFlagged: false,
		},
		{
			name: "уверенный malicious блокируется",
			verdict: &models.SafetyVerdict{
				IsSafe:     false,
				Flagged:    true,
				Reason:     "phishing",
				Category:   models.CategoryMalicious,
				Confidence: 0.95,
			},
			wantBlock:   true,
			wantFlagged: true,
		},
		{
			name: "malicious на пороге уверенности не блокируется",
			verdict: &models.SafetyVerdict{
				IsSafe:     false,
				Flagged:    true,
				Reason:     "possible phishing",
				Category:   models.CategoryMalicious,
				Confidence: 0.85,
			},
			wantBlock:   false,
			wantFlagged: true,
		},
		{
			name: "suspicious помечается, но не блокируется",
			verdict: &models.SafetyVerdict{
				IsSafe:     false,
				Flagged:    true,
				Reason:     "suspicious redirect chain",
				Category:   models.CategorySuspicious,
				Confidence: 0.99,
			},
			wantBlock:   false,
			wantFlagged: true,
		},
		{
			name: "привилегированный вызывающий не блокируется",
			verdict: &models.SafetyVerdict{
				IsSafe:     false,
				Flagged:    true,
				Reason:     "phishing",
				Category:   models.CategoryMalicious,
				Confidence: 0.99,
			},
			privileged:  true,
			wantBlock:   false,
			wantFlagged: true,
		},
		{
			name: "fail-open вердикт проходит без пометки",
			verdict: &models.SafetyVerdict{
				IsSafe:     true,
				Category:   models.CategoryUnknown,
				Confidence: 0,
			},
			wantBlock:   false,
			wantFlagged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := Decide(tt.verdict, tt.privileged)
			assert.Equal(t, tt.wantBlock, decision.ShouldBlock)
			assert.Equal(t, tt.wantFlagged, decision.Flagged)
			if tt.wantFlagged && tt.verdict.Reason != "" {
				require.NotNil(t, decision.FlagReason)
				assert.Equal(t, tt.verdict.Reason, *decision.FlagReason)
			}
		})
	}
}

// TestParseVerdict проверяет разбор и нормализацию ответа классификатора
func TestParseVerdict(t *testing.T) {
	t.Run("чистый JSON", func(t *testing.T) {
		verdict, err := parseVerdict(`{"is_safe": false, "flagged": true, "reason": "malware", "category": "malicious", "confidence": 0.9}`)
		require.NoError(t, err)
		assert.False(t, verdict.IsSafe)
		assert.True(t, verdict.Flagged)
		assert.Equal(t, models.CategoryMalicious, verdict.Category)
		assert.InDelta(t, 0.9, verdict.Confidence, 1e-9)
	})

	t.Run("JSON в code fence", func(t *testing.T) {
		raw := "```json\n{\"is_safe\": true, \"category\": \"safe\", \"confidence\": 1}\n```"
		verdict, err := parseVerdict(raw)
		require.NoError(t, err)
		assert.True(t, verdict.IsSafe)
		assert.Equal(t, models.CategorySafe, verdict.Category)
	})

	t.Run("неизвестная категория нормализуется в unknown", func(t *testing.T) {
		verdict, err := parseVerdict(`{"is_safe": true, "category": "weird", "confidence": 0.5}`)
		require.NoError(t, err)
		assert.Equal(t, models.CategoryUnknown, verdict.Category)
	})

	t.Run("уверенность ограничивается диапазоном [0, 1]", func(t *testing.T) {
		verdict, err := parseVerdict(`{"is_safe": true, "category": "safe", "confidence": 42}`)
		require.NoError(t, err)
		assert.Equal(t, 1.0, verdict.Confidence)

		verdict, err = parseVerdict(`{"is_safe": true, "category": "safe", "confidence": -1}`)
		require.NoError(t, err)
		assert.Equal(t, 0.0, verdict.Confidence)
	})

	t.Run("мусор вместо JSON", func(t *testing.T) {
		verdict, err := parseVerdict("I think this URL is probably fine")
		assert.Error(t, err)
		assert.Nil(t, verdict)
	})
}
