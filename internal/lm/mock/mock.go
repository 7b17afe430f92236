// Package mock provides a test double for the lm.Model interface.
//
// Use Model in beam-search and batch-executor tests to pin down LM
// contributions without parsing an ARPA fixture. All fields are safe to set
// before calling any method; mutating them during a concurrent decode is
// the caller's responsibility.
package mock

import "github.com/voicecore/ctcdecode/internal/lm"

// ScoreCall records a single invocation of Score.
type ScoreCall struct {
	Context []string
	Token   string
}

// Model is a mock implementation of lm.Model. Scores defaults every token
// to Default unless an override is present for that exact token.
type Model struct {
	Default    float64
	Overrides  map[string]float64
	Unknown    map[string]bool
	CharBased  bool
	Order      int
	Dict       int
	AlphaValue float64
	BetaValue  float64

	Calls []ScoreCall
}

var _ lm.Model = (*Model)(nil)

// NullState returns the empty context.
func (m *Model) NullState() lm.State { return lm.State{} }

// Score returns Overrides[token] if present, else Default, and records the
// call for test assertions.
func (m *Model) Score(state lm.State, token string) (lm.State, float64) {
	m.Calls = append(m.Calls, ScoreCall{Token: token})
	if p, ok := m.Overrides[token]; ok {
		return state, p
	}
	return state, m.Default
}

// IsUnknown returns Unknown[token].
func (m *Model) IsUnknown(token string) bool { return m.Unknown[token] }

// IsCharacterBased returns CharBased.
func (m *Model) IsCharacterBased() bool { return m.CharBased }

// MaxOrder returns Order.
func (m *Model) MaxOrder() int { return m.Order }

// DictSize returns Dict.
func (m *Model) DictSize() int { return m.Dict }

// Alpha returns AlphaValue.
func (m *Model) Alpha() float64 { return m.AlphaValue }

// Beta returns BetaValue.
func (m *Model) Beta() float64 { return m.BetaValue }

// SetWeights updates AlphaValue/BetaValue.
func (m *Model) SetWeights(alpha, beta float64) {
	m.AlphaValue, m.BetaValue = alpha, beta
}
