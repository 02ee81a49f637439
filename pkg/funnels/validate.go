package funnels

import (
	"sort"

	"funnel-health/pkg/models"

	"github.com/go-playground/validator/v10"
)

const defaultCountingMode = "A"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Normalize fills defaults of an incoming funnel definition.
func Normalize(f models.Funnel) models.Funnel {
	if f.CountingMode == "" {
		f.CountingMode = defaultCountingMode
	}
	if f.Steps == nil {
		f.Steps = []models.Step{}
	}
	return f
}

// Validate checks the required fields of a funnel definition.
func Validate(f models.Funnel) error {
	return validate.Struct(f)
}

func sortByExperience(fs []models.Funnel) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].ExperienceID < fs[j].ExperienceID })
}
