package service

import (
	"hash/fnv"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vaxburden-server/internal/domain"
)

// ParameterSampler draws values from bounded three-point (PERT)
// distributions. With PSA disabled it is the identity on the central
// value. Each sampler owns its own random stream so parallel units stay
// bit-reproducible regardless of scheduling order.
type ParameterSampler struct {
	enabled bool
	src     rand.Source
}

// NewParameterSampler creates a sampler over an explicit random source.
// The source must not be shared between concurrent units.
func NewParameterSampler(enabled bool, src rand.Source) *ParameterSampler {
	return &ParameterSampler{enabled: enabled, src: src}
}

// NewUnitSampler creates a sampler seeded deterministically from the base
// seed and the (country, iteration) unit key.
func NewUnitSampler(enabled bool, baseSeed int64, country string, iteration int) *ParameterSampler {
	return NewParameterSampler(enabled, rand.NewSource(unitSeed(baseSeed, country, iteration)))
}

// unitSeed folds a stable per-unit key into the base seed. FNV-1a over
// "country|iteration" keeps the streams independent and reproducible.
func unitSeed(baseSeed int64, country string, iteration int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(country))
	h.Write([]byte{'|'})
	h.Write([]byte{
		byte(iteration >> 24), byte(iteration >> 16), byte(iteration >> 8), byte(iteration),
	})
	return uint64(baseSeed) ^ h.Sum64()
}

// Sample draws one value from the PERT distribution with minimum Low,
// mode Central and maximum High. It returns a configuration error for
// malformed bounds, and the central value without drawing when sampling
// is disabled or the bounds are degenerate.
func (s *ParameterSampler) Sample(b domain.Bounded) (float64, error) {
	if b.Low > b.High {
		return 0, domain.NewConfigError("bounds", "low bound exceeds high bound")
	}
	if b.Central < b.Low || b.Central > b.High {
		return 0, domain.NewConfigError("bounds", "central value outside [low, high]")
	}
	if !s.enabled || b.Degenerate() {
		return b.Central, nil
	}

	// Classic PERT shape parameters: a Beta distribution with its mode at
	// the central estimate, scaled onto [low, high].
	span := b.High - b.Low
	dist := distuv.Beta{
		Alpha: 1 + 4*(b.Central-b.Low)/span,
		Beta:  1 + 4*(b.High-b.Central)/span,
		Src:   s.src,
	}
	return b.Low + dist.Rand()*span, nil
}

// SampleCohort resolves a cohort parameter row to scalar values,
// drawing each uncertain quantity once.
func (s *ParameterSampler) SampleCohort(row domain.CohortParams) (domain.CohortValues, error) {
	var v domain.CohortValues
	var err error
	v.Age = row.Age
	if v.Incidence, err = s.Sample(row.Incidence); err != nil {
		return v, err
	}
	if v.CFR, err = s.Sample(row.CFR); err != nil {
		return v, err
	}
	if v.CaseCost, err = s.Sample(row.CaseCost); err != nil {
		return v, err
	}
	v.TreatProp, err = s.Sample(row.TreatProp)
	return v, err
}
