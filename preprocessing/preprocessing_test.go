package preprocessing

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/flowml/core"
)

func TestStandardScaler(t *testing.T) {
	s := NewStandardScaler()
	for _, v := range []float64{1, 2, 3} {
		require.NoError(t, s.LearnOne(core.Features{"x": v, "c": "a"}))
	}

	out, err := s.TransformOne(core.Features{"x": 3.0, "c": "a", "unseen": 5})
	require.NoError(t, err)
	// mean = 2，总体方差 = 2/3
	assert.InDelta(t, 1/math.Sqrt(2.0/3.0), out["x"], 1e-9)
	assert.Equal(t, "a", out["c"])
	assert.Equal(t, 0.0, out["unseen"])
}

func TestStandardScalerConstantFeature(t *testing.T) {
	s := NewStandardScaler()
	require.NoError(t, s.LearnOne(core.Features{"x": 4}))
	require.NoError(t, s.LearnOne(core.Features{"x": 4}))

	out, err := s.TransformOne(core.Features{"x": 4})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["x"])
}

func TestMinMaxAndMaxAbsScaler(t *testing.T) {
	mm := NewMinMaxScaler()
	ma := NewMaxAbsScaler()
	for _, v := range []float64{-4, 0, 6} {
		x := core.Features{"x": v}
		require.NoError(t, mm.LearnOne(x))
		require.NoError(t, ma.LearnOne(x))
	}

	out, err := mm.TransformOne(core.Features{"x": 1.0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out["x"], 1e-12)

	out, err = ma.TransformOne(core.Features{"x": -3.0})
	require.NoError(t, err)
	assert.InDelta(t, -0.5, out["x"], 1e-12)
}

func TestOneHotEncoder(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		in     core.Features
		want   core.Features
	}{
		{
			name: "all categorical",
			in:   core.Features{"city": "paris", "age": 30},
			want: core.Features{"city_paris": 1.0, "age": 30},
		},
		{
			name:   "explicit fields",
			fields: []string{"zone"},
			in:     core.Features{"zone": 3, "city": "paris"},
			want:   core.Features{"zone_3": 1.0, "city": "paris"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewOneHotEncoder(tt.fields...).TransformOne(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, out); diff != "" {
				t.Errorf("TransformOne() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLogTransformer(t *testing.T) {
	lt := &LogTransformer{Fields: []string{"price"}}
	out, err := lt.TransformOne(core.Features{"price": math.E - 1, "n": 10.0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out["price"], 1e-12)
	assert.Equal(t, 10.0, out["n"])

	out, err = lt.TransformOne(core.Features{"price": -2.0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["price"])
}

func TestBinner(t *testing.T) {
	b := NewBinner(map[string][]float64{"age": {60, 18, 30}})
	tests := []struct {
		age  float64
		want float64
	}{
		{10, 0}, {18, 1}, {25, 1}, {30, 2}, {99, 3},
	}
	for _, tt := range tests {
		out, err := b.TransformOne(core.Features{"age": tt.age})
		require.NoError(t, err)
		assert.Equal(t, tt.want, out["age"], "age=%v", tt.age)
	}
}

func TestStatImputer(t *testing.T) {
	imp, err := NewStatImputer(map[string]string{"temp": "mean"})
	require.NoError(t, err)
	require.NoError(t, imp.LearnOne(core.Features{"temp": 10}))
	require.NoError(t, imp.LearnOne(core.Features{"temp": 20}))
	require.NoError(t, imp.LearnOne(core.Features{"temp": nil}))

	out, err := imp.TransformOne(core.Features{"other": 1})
	require.NoError(t, err)
	assert.Equal(t, 15.0, out["temp"])

	out, err = imp.TransformOne(core.Features{"temp": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, out["temp"])

	_, err = NewStatImputer(map[string]string{"temp": "median"})
	assert.Error(t, err)
}

func TestFeatureCross(t *testing.T) {
	c := &FeatureCross{Left: []string{"a"}, Right: []string{"b", "missing"}}
	out, err := c.TransformOne(core.Features{"a": 2, "b": 3.5})
	require.NoError(t, err)
	assert.Equal(t, 7.0, out["a_x_b"])
	assert.NotContains(t, out, "a_x_missing")
}
