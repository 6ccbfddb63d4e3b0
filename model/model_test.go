package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/optim"
)

func TestLinearRegressionLearnsLine(t *testing.T) {
	m := NewLinearRegression(optim.NewSGD(0.05))
	m.InterceptLR = 0.05

	// y = 2*x + 1
	for epoch := 0; epoch < 200; epoch++ {
		for _, x := range []float64{-1, -0.5, 0, 0.5, 1} {
			require.NoError(t, m.LearnOne(core.Features{"x": x}, 2*x+1))
		}
	}

	got, err := m.PredictOne(core.Features{"x": 0.25})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, got, 0.05)
	assert.InDelta(t, 2.0, m.Weights["x"], 0.05)
}

func TestLinearRegressionIgnoresNonNumeric(t *testing.T) {
	m := NewLinearRegression(nil)
	require.NoError(t, m.LearnOne(core.Features{"x": 1.0, "city": "Paris"}, 3.0))
	_, ok := m.Weights["city"]
	assert.False(t, ok)
}

func TestTimeFeaturesAreIgnored(t *testing.T) {
	x := core.Features{"a": 1.0, "when": time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}

	reg := NewLinearRegression(optim.NewSGD(0.1))
	require.NoError(t, reg.LearnOne(x, 10.0))
	assert.NotContains(t, reg.Weights, "when")
	got, err := reg.PredictOne(x)
	require.NoError(t, err)
	assert.Less(t, got, 10.0)

	clf := NewLogisticRegression(nil)
	require.NoError(t, clf.LearnOne(x, true))
	assert.NotContains(t, clf.Weights, "when")

	soft := NewSoftmaxRegression(nil)
	require.NoError(t, soft.LearnOne(x, "red"))
	for _, w := range soft.weights {
		assert.NotContains(t, w, "when")
	}
}

func TestLinearRegressionRejectsInvalidTarget(t *testing.T) {
	m := NewLinearRegression(nil)
	err := m.LearnOne(core.Features{"x": 1.0}, "high")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidTarget)
	assert.True(t, core.IsInvalidInput(err))
}

func TestLogisticRegressionSeparates(t *testing.T) {
	m := NewLogisticRegression(optim.NewSGD(0.5))
	for i := 0; i < 300; i++ {
		require.NoError(t, m.LearnOne(core.Features{"x": 1.0}, true))
		require.NoError(t, m.LearnOne(core.Features{"x": -1.0}, false))
	}

	pos, err := m.PredictProbaOne(core.Features{"x": 1.0})
	require.NoError(t, err)
	assert.Greater(t, pos[true], 0.9)
	assert.InDelta(t, 1.0, pos[true]+pos[false], 1e-12)

	label, err := core.PredictLabel(m, core.Features{"x": -1.0})
	require.NoError(t, err)
	assert.Equal(t, false, label)
}

func TestLogisticRegressionNumericTargets(t *testing.T) {
	m := NewLogisticRegression(nil)
	require.NoError(t, m.LearnOne(core.Features{"x": 1.0}, 1))
	require.NoError(t, m.LearnOne(core.Features{"x": 1.0}, 0.0))
	require.Error(t, m.LearnOne(core.Features{"x": 1.0}, 2))
}

func TestSoftmaxRegression(t *testing.T) {
	m := NewSoftmaxRegression(optim.NewSGD(0.1))

	proba, err := m.PredictProbaOne(core.Features{"a": 1.0})
	require.NoError(t, err)
	assert.Empty(t, proba)

	samples := []struct {
		x core.Features
		y string
	}{
		{core.Features{"a": 1.0, "b": 0.0}, "red"},
		{core.Features{"a": 0.0, "b": 1.0}, "green"},
		{core.Features{"a": -1.0, "b": -1.0}, "blue"},
	}
	for i := 0; i < 300; i++ {
		for _, s := range samples {
			require.NoError(t, m.LearnOne(s.x, s.y))
		}
	}

	assert.Equal(t, 3, m.Classes())
	for _, s := range samples {
		label, err := core.PredictLabel(m, s.x)
		require.NoError(t, err)
		assert.Equal(t, s.y, label)
	}
}

func TestStateRoundTripThroughFile(t *testing.T) {
	m := NewLogisticRegression(nil)
	m.Bias = 0.5
	m.Weights = map[string]float64{"x": 2}

	data, err := m.MarshalState()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "lr.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadLogisticRegression(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, loaded.Bias)
	assert.Equal(t, m.Weights, loaded.Weights)

	_, err = LoadLinearRegression(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)
}

func TestSoftmaxStateRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		labels []any
	}{
		{"string", []any{"red", "green", "blue"}},
		{"int", []any{0, 1, 2}},
		{"bool", []any{true, false}},
		{"float", []any{0.5, 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSoftmaxRegression(optim.NewSGD(0.1))
			for i := 0; i < 50; i++ {
				for j, label := range tt.labels {
					require.NoError(t, m.LearnOne(core.Features{"x": float64(j)}, label))
				}
			}
			data, err := m.MarshalState()
			require.NoError(t, err)

			path := filepath.Join(t.TempDir(), "softmax.json")
			require.NoError(t, os.WriteFile(path, data, 0o644))
			loaded, err := LoadSoftmaxRegression(path, optim.NewSGD(0.1))
			require.NoError(t, err)

			x := core.Features{"x": 1.0}
			want, err := m.PredictProbaOne(x)
			require.NoError(t, err)
			got, err := loaded.PredictProbaOne(x)
			require.NoError(t, err)
			require.Len(t, got, len(want))
			for label, p := range want {
				assert.InDelta(t, p, got[label], 1e-12, "class %v", label)
			}
		})
	}
}

func TestSoftmaxStateRejectsMixedLabels(t *testing.T) {
	m := NewSoftmaxRegression(nil)
	require.NoError(t, m.LearnOne(core.Features{"x": 1.0}, "red"))
	require.NoError(t, m.LearnOne(core.Features{"x": 1.0}, 3))
	_, err := m.MarshalState()
	assert.True(t, core.IsNotSupported(err))

	err = m.UnmarshalState([]byte(`{"label_type":"int","weights":{"red":{"x":1}}}`))
	assert.True(t, core.IsInvalidInput(err))
}
