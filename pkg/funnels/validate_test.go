package funnels

import (
	"os"
	"path/filepath"
	"testing"

	"funnel-health/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	ok := Normalize(models.Funnel{ExperienceID: "exp_1", CompanyID: "biz_1"})
	assert.Equal(t, "A", ok.CountingMode)
	assert.NotNil(t, ok.Steps)
	assert.NoError(t, Validate(ok))

	assert.Error(t, Validate(Normalize(models.Funnel{CompanyID: "biz_1"})))
	assert.Error(t, Validate(Normalize(models.Funnel{ExperienceID: "exp_1"})))
	assert.Error(t, Validate(models.Funnel{ExperienceID: "exp_1", CompanyID: "biz_1", CountingMode: "C"}))
}

func TestLoadDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funnels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
funnels:
  - experience_id: exp_1
    company_id: biz_1
    steps:
      - order: 0
        productId: prod_a
        product:
          title: Starter Academy
      - order: 1
      - order: 2
        productId: prod_b
  - experience_id: exp_2
    company_id: biz_1
    counting_mode: B
`), 0o644))

	fs, err := LoadDefinitions(path)
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, "A", fs[0].CountingMode)
	require.Len(t, fs[0].Steps, 3)
	assert.Equal(t, "Starter Academy", fs[0].Steps[0].Product.Title)
	assert.Empty(t, fs[0].Steps[1].ProductID)
	assert.Equal(t, "B", fs[1].CountingMode)
	assert.Empty(t, fs[1].Steps)
}

func TestLoadDefinitionsRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "funnels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("funnels:\n  - company_id: biz_1\n"), 0o644))

	_, err := LoadDefinitions(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "funnel #1")
}
