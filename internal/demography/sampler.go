package demography

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler draws ages with replacement from an AgeTable, weighted by the
// gender-specific population column.
type Sampler struct {
	ages   []int
	female distuv.Categorical
	male   distuv.Categorical
}

// NewSampler builds per-gender categorical distributions over the table rows.
// Both gender columns must carry some mass.
func NewSampler(t AgeTable, rng *rand.Rand) (*Sampler, error) {
	if len(t.Rows) == 0 {
		return nil, ErrEmptyTable
	}
	fw := t.Weights(GenderFemale)
	mw := t.Weights(GenderMale)
	if floats.Sum(fw) <= 0 || floats.Sum(mw) <= 0 {
		return nil, fmt.Errorf("demography: gender column sums to zero")
	}
	return &Sampler{
		ages:   t.Ages(),
		female: distuv.NewCategorical(fw, rng),
		male:   distuv.NewCategorical(mw, rng),
	}, nil
}

// SampleOne draws a single age for the given gender.
func (s *Sampler) SampleOne(g Gender) int {
	d := s.female
	if g == GenderMale {
		d = s.male
	}
	return s.ages[int(d.Rand())]
}

// Sample draws n ages for the given gender.
func (s *Sampler) Sample(n int, g Gender) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = s.SampleOne(g)
	}
	return out
}
