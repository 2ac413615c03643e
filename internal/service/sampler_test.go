package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/vaxburden-server/internal/domain"
)

func TestParameterSampler_DisabledIsIdentity(t *testing.T) {
	s := NewParameterSampler(false, rand.NewSource(1))

	tests := []struct {
		name string
		b    domain.Bounded
	}{
		{"mid range", domain.Bounded{Central: 0.5, Low: 0.1, High: 0.9}},
		{"at low bound", domain.Bounded{Central: 0.1, Low: 0.1, High: 0.9}},
		{"at high bound", domain.Bounded{Central: 0.9, Low: 0.1, High: 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Sample(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.b.Central, got)
		})
	}
}

func TestParameterSampler_DegenerateBounds(t *testing.T) {
	// low = central = high must return the value without drawing, even
	// with sampling enabled.
	s := NewParameterSampler(true, rand.NewSource(1))
	got, err := s.Sample(domain.Fixed(0.42))
	require.NoError(t, err)
	assert.Equal(t, 0.42, got)
}

func TestParameterSampler_InvalidBounds(t *testing.T) {
	s := NewParameterSampler(true, rand.NewSource(1))

	_, err := s.Sample(domain.Bounded{Central: 0.5, Low: 0.9, High: 0.1})
	require.Error(t, err)
	assert.IsType(t, &domain.ConfigError{}, err)

	_, err = s.Sample(domain.Bounded{Central: 0.95, Low: 0.1, High: 0.9})
	require.Error(t, err)
	assert.IsType(t, &domain.ConfigError{}, err)
}

func TestParameterSampler_DrawsWithinBounds(t *testing.T) {
	s := NewParameterSampler(true, rand.NewSource(7))
	b := domain.Bounded{Central: 0.3, Low: 0.1, High: 0.8}

	for i := 0; i < 1000; i++ {
		v, err := s.Sample(b)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, b.Low)
		assert.LessOrEqual(t, v, b.High)
	}
}

func TestParameterSampler_Reproducible(t *testing.T) {
	b := domain.Bounded{Central: 0.3, Low: 0.1, High: 0.8}

	s1 := NewUnitSampler(true, 99, "GHA", 3)
	s2 := NewUnitSampler(true, 99, "GHA", 3)
	for i := 0; i < 100; i++ {
		v1, err := s1.Sample(b)
		require.NoError(t, err)
		v2, err := s2.Sample(b)
		require.NoError(t, err)
		assert.Equal(t, v1, v2)
	}
}

func TestParameterSampler_IndependentStreams(t *testing.T) {
	b := domain.Bounded{Central: 0.3, Low: 0.1, High: 0.8}

	s1 := NewUnitSampler(true, 99, "GHA", 1)
	s2 := NewUnitSampler(true, 99, "GHA", 2)
	v1, err := s1.Sample(b)
	require.NoError(t, err)
	v2, err := s2.Sample(b)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}
