package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanAndVar(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	mean := NewMean()
	v := NewVar()
	for _, x := range xs {
		mean.Update(x)
		v.Update(x)
	}

	assert.InDelta(t, 5.0, mean.Get(), 1e-12)
	// 样本方差：sum((x-5)^2) / (n-1) = 32 / 7
	assert.InDelta(t, 32.0/7.0, v.Get(), 1e-12)

	std := NewStd()
	for _, x := range xs {
		std.Update(x)
	}
	assert.InDelta(t, math.Sqrt(32.0/7.0), std.Get(), 1e-12)
}

func TestRevertRestoresPreviousValue(t *testing.T) {
	tests := []struct {
		name string
		stat Revertable
	}{
		{"mean", NewMean()},
		{"var", NewVar()},
		{"sum", &Sum{}},
		{"count", &Count{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, x := range []float64{3, 1, 4, 1, 5} {
				tt.stat.Update(x)
			}
			before := tt.stat.Get()
			tt.stat.Update(9)
			tt.stat.Revert(9)
			assert.InDelta(t, before, tt.stat.Get(), 1e-9)
		})
	}
}

func TestMeanRevertToEmpty(t *testing.T) {
	m := NewMean()
	m.Update(3)
	m.Revert(3)
	assert.Equal(t, 0.0, m.Get())
	assert.Equal(t, 0.0, m.N())
}

func TestWeightedMean(t *testing.T) {
	m := NewMean()
	m.UpdateWeighted(1, 1)
	m.UpdateWeighted(4, 2)
	assert.InDelta(t, 3.0, m.Get(), 1e-12)
}

func TestMinMaxPeakToPeak(t *testing.T) {
	var (
		min Min
		max Max
		ptp PeakToPeak
	)
	assert.True(t, math.IsInf(min.Get(), 1))
	assert.True(t, math.IsInf(max.Get(), -1))
	assert.Equal(t, 0.0, ptp.Get())

	for _, x := range []float64{3, -2, 8, 1} {
		min.Update(x)
		max.Update(x)
		ptp.Update(x)
	}
	assert.Equal(t, -2.0, min.Get())
	assert.Equal(t, 8.0, max.Get())
	assert.Equal(t, 10.0, ptp.Get())
}

func TestEWMean(t *testing.T) {
	e := NewEWMean(0.5)
	for _, x := range []float64{1, 3, 5, 7} {
		e.Update(x)
	}
	// 1 -> 2 -> 3.5 -> 5.25
	assert.InDelta(t, 5.25, e.Get(), 1e-12)
	assert.Equal(t, "ewm_0.5", e.Name())
}

func TestEWVarConstantStreamIsZero(t *testing.T) {
	e := NewEWVar(0.3)
	for i := 0; i < 10; i++ {
		e.Update(4)
	}
	assert.InDelta(t, 0.0, e.Get(), 1e-12)
}

func TestRollingMean(t *testing.T) {
	r := NewRolling(NewMean(), 3)
	got := make([]float64, 0, 5)
	for _, x := range []float64{1, 2, 3, 4, 5} {
		r.Update(x)
		got = append(got, r.Get())
	}
	assert.InDeltaSlice(t, []float64{1, 1.5, 2, 3, 4}, got, 1e-12)
	assert.Equal(t, "rolling_mean_3", r.Name())
}

func TestRollingMinMax(t *testing.T) {
	rmin := NewRollingMin(2)
	rmax := NewRollingMax(2)
	for _, x := range []float64{5, 1, 7, 6} {
		rmin.Update(x)
		rmax.Update(x)
	}
	assert.Equal(t, 6.0, rmin.Get())
	assert.Equal(t, 7.0, rmax.Get())
}

func TestWindowValuesOrder(t *testing.T) {
	w := NewWindow(3)
	for _, x := range []float64{1, 2, 3, 4} {
		w.Append(x)
	}
	assert.Equal(t, []float64{2, 3, 4}, w.Values())
	assert.True(t, w.Full())
}

func TestNew(t *testing.T) {
	tests := []struct {
		expr     string
		wantName string
		wantErr  bool
	}{
		{expr: "mean", wantName: "mean"},
		{expr: "var", wantName: "var"},
		{expr: "ewm:0.1", wantName: "ewm_0.1"},
		{expr: "ewm", wantName: "ewm_0.5"},
		{expr: "rolling_mean:7", wantName: "rolling_mean_7"},
		{expr: "rolling_max:4", wantName: "rolling_max_4"},
		{expr: "rolling_mean", wantErr: true},
		{expr: "rolling_ewm:3", wantErr: true},
		{expr: "ewm:2", wantErr: true},
		{expr: "median", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			stat, err := New(tt.expr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, stat.Name())
		})
	}
}
