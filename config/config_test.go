package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/flowml/config"
	_ "github.com/rushteam/flowml/config/builders"
	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/model"
)

const yamlConfig = `
pipeline:
  name: regression
  steps:
    - type: compose.select
      config:
        fields: [x]
    - type: preprocessing.standard_scaler
    - type: model.linear_regression
      config:
        optimizer: sgd
        lr: 0.05
        l2: 0.001
`

const jsonConfig = `{
  "pipeline": {
    "name": "regression",
    "steps": [
      {"type": "compose.select", "config": {"fields": ["x"]}},
      {"type": "preprocessing.standard_scaler"},
      {"type": "model.linear_regression", "config": {"optimizer": "sgd", "lr": 0.05, "l2": 0.001}}
    ]
  }
}`

const tomlConfig = `
[pipeline]
name = "regression"

[[pipeline.steps]]
type = "compose.select"
config = { fields = ["x"] }

[[pipeline.steps]]
type = "preprocessing.standard_scaler"

[[pipeline.steps]]
type = "model.linear_regression"
config = { optimizer = "sgd", lr = 0.05, l2 = 0.001 }
`

func TestParseFormats(t *testing.T) {
	tests := []struct {
		format config.Format
		data   string
	}{
		{config.FormatYAML, yamlConfig},
		{config.FormatJSON, jsonConfig},
		{config.FormatTOML, tomlConfig},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			cfg, err := config.Parse([]byte(tt.data), tt.format)
			require.NoError(t, err)
			assert.Equal(t, "regression", cfg.Pipeline.Name)
			require.Len(t, cfg.Pipeline.Steps, 3)
			assert.Equal(t, "model.linear_regression", cfg.Pipeline.Steps[2].Type)

			p, err := cfg.Build()
			require.NoError(t, err)
			assert.Len(t, p.Steps(), 2)
			lr, ok := p.Unwrap().(*model.LinearRegression)
			require.True(t, ok)
			assert.Equal(t, 0.001, lr.L2)

			for i := 0; i < 200; i++ {
				x := float64(i % 10)
				require.NoError(t, p.LearnOne(core.Features{"x": x, "noise": "drop me"}, 3*x))
			}
			_, err = p.PredictOne(core.Features{"x": 1.0})
			require.NoError(t, err)
		})
	}
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"p.yaml": yamlConfig,
		"p.yml":  yamlConfig,
		"p.json": jsonConfig,
		"p.toml": tomlConfig,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
		cfg, err := config.Load(path)
		require.NoError(t, err, name)
		assert.Len(t, cfg.Pipeline.Steps, 3, name)
	}

	_, err := config.Load(filepath.Join(dir, "p.ini"))
	assert.True(t, core.IsNotSupported(err))

	_, err = config.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestUnknownStepTypeListsSupported(t *testing.T) {
	cfg, err := config.Parse([]byte(`
pipeline:
  steps:
    - type: model.random_forest
`), config.FormatYAML)
	require.NoError(t, err)

	_, err = cfg.Build()
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
	assert.Contains(t, err.Error(), "model.random_forest")
	assert.Contains(t, err.Error(), "model.linear_regression")
}

func TestEmptyPipeline(t *testing.T) {
	cfg, err := config.Parse([]byte(`pipeline: {name: empty}`), config.FormatYAML)
	require.NoError(t, err)
	_, err = cfg.Build()
	assert.True(t, core.IsInvalidInput(err))
}

func TestSupportedTypes(t *testing.T) {
	types := config.SupportedTypes()
	for _, want := range []string{
		"compose.union", "feature.agg", "feature.feast", "imblearn.random_under_sampler",
		"ensemble.bagging_regressor", "reco.biased_mf", "preprocessing.one_hot",
	} {
		assert.Contains(t, types, want)
	}
	assert.True(t, strings.Compare(types[0], types[len(types)-1]) < 0, "sorted")
}

func TestNestedBuilders(t *testing.T) {
	cfg, err := config.Parse([]byte(`
pipeline:
  name: fraud
  steps:
    - type: compose.union
      config:
        steps:
          - type: preprocessing.standard_scaler
          - type: feature.agg
            config: {on: amount, by: [shop], how: mean}
    - type: imblearn.random_under_sampler
      config:
        label_type: bool
        desired: {"true": 0.5, "false": 0.5}
        seed: 1
        classifier:
          type: model.logistic_regression
          config: {lr: 0.1}
`), config.FormatYAML)
	require.NoError(t, err)

	p, err := cfg.Build()
	require.NoError(t, err)
	assert.True(t, core.IsClassifier(p))

	for i := 0; i < 20; i++ {
		x := core.Features{"amount": float64(i), "shop": "a"}
		require.NoError(t, p.LearnOne(x, i%5 == 0))
	}
	proba, err := p.PredictProbaOne(core.Features{"amount": 3.0, "shop": "a"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, proba[true]+proba[false], 1e-9)
}

func TestBaggingAndRecoBuilders(t *testing.T) {
	cfg, err := config.Parse([]byte(`
pipeline:
  steps:
    - type: ensemble.bagging_regressor
      config:
        n: 3
        seed: 42
        model: {type: model.linear_regression}
`), config.FormatYAML)
	require.NoError(t, err)
	p, err := cfg.Build()
	require.NoError(t, err)
	assert.True(t, core.IsRegressor(p))

	mf, err := config.BuildStep("reco.biased_mf", map[string]any{"n_factors": 4, "latent_lr": 0.05})
	require.NoError(t, err)
	assert.True(t, core.IsRegressor(mf))
}

func TestBuilderValidation(t *testing.T) {
	tests := []struct {
		stepType string
		cfg      map[string]any
	}{
		{"feature.feast", map[string]any{"entity_field": "driver"}},
		{"feature.agg", map[string]any{}},
		{"compose.expr", map[string]any{"feature": "f"}},
		{"preprocessing.binner", nil},
		{"imblearn.random_over_sampler", map[string]any{}},
		{"imblearn.random_sampler", map[string]any{
			"classifier": map[string]any{"type": "model.linear_regression"},
		}},
		{"ensemble.bagging_classifier", map[string]any{
			"model": map[string]any{"type": "preprocessing.standard_scaler"},
		}},
		{"model.linear_regression", map[string]any{"optimizer": "newton"}},
	}
	for _, tt := range tests {
		t.Run(tt.stepType, func(t *testing.T) {
			_, err := config.BuildStep(tt.stepType, tt.cfg)
			assert.Error(t, err)
		})
	}
}
