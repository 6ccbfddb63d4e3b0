package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/flowml/core"
)

func feed(t *testing.T, m Metric, yTrue, yPred []any) {
	t.Helper()
	for i := range yTrue {
		require.NoError(t, m.Update(yTrue[i], yPred[i], 1))
	}
}

func TestRegressionMetrics(t *testing.T) {
	yTrue := []any{3, -0.5, 2, 7}
	yPred := []any{2.5, 0.0, 2, 8}

	tests := []struct {
		metric Metric
		want   float64
	}{
		{NewMAE(), 0.5},
		{NewMSE(), 0.375},
		{NewRMSE(), math.Sqrt(0.375)},
		{NewR2(), 0.9486081370449679},
	}
	for _, tt := range tests {
		t.Run(tt.metric.Name(), func(t *testing.T) {
			feed(t, tt.metric, yTrue, yPred)
			assert.InDelta(t, tt.want, tt.metric.Get(), 1e-9)
		})
	}
}

func TestRevertUndoesUpdate(t *testing.T) {
	m := NewMAE()
	feed(t, m, []any{1.0, 2.0, 3.0}, []any{2.0, 2.0, 5.0})
	require.NoError(t, m.Revert(3.0, 5.0, 1))
	assert.InDelta(t, 0.5, m.Get(), 1e-12)

	acc := NewAccuracy()
	feed(t, acc, []any{true, false}, []any{true, true})
	require.NoError(t, acc.Revert(false, true, 1))
	assert.InDelta(t, 1.0, acc.Get(), 1e-12)
}

func TestRegressionRejectsNonNumeric(t *testing.T) {
	err := NewMAE().Update("a", 1.0, 1)
	assert.ErrorIs(t, err, ErrInvalidPrediction)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "MAE: 0.5", Format("MAE", 0.5))
	assert.Equal(t, "MAE: 1", Format("MAE", 1))
	assert.Equal(t, "MAE: 0", Format("MAE", 0))
	assert.Equal(t, "MSE: 1,234,567.891", Format("MSE", 1234567.891))
	assert.Equal(t, "R2: -1,234.5", Format("R2", -1234.5))
	assert.Equal(t, "LogLoss: 0.123457", Format("LogLoss", 0.1234567))
}

func TestBinaryClassificationMetrics(t *testing.T) {
	yTrue := []any{true, false, true, true, false, true}
	yPred := []any{true, true, false, true, false, true}

	tests := []struct {
		metric Metric
		want   float64
	}{
		{NewAccuracy(), 4.0 / 6.0},
		{NewPrecision(), 0.75},
		{NewRecall(), 0.75},
		{NewF1(), 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.metric.Name(), func(t *testing.T) {
			feed(t, tt.metric, yTrue, yPred)
			assert.InDelta(t, tt.want, tt.metric.Get(), 1e-12)
			assert.True(t, tt.metric.RequiresLabels())
			assert.True(t, tt.metric.BiggerIsBetter())
		})
	}
}

func TestProbaUsesArgmax(t *testing.T) {
	m := NewAccuracy()
	require.NoError(t, m.Update(true, core.Proba{true: 0.8, false: 0.2}, 1))
	require.NoError(t, m.Update(false, core.Proba{true: 0.6, false: 0.4}, 1))
	assert.InDelta(t, 0.5, m.Get(), 1e-12)
}

func TestMacroF1(t *testing.T) {
	m := NewMacroF1()
	feed(t, m, []any{0, 1, 2, 0, 1, 2}, []any{0, 2, 1, 0, 0, 1})
	assert.InDelta(t, 0.26666666666666666, m.Get(), 1e-12)
}

func TestConfusionMatrix(t *testing.T) {
	cm := NewConfusionMatrix()
	cm.Update("cat", "cat", 1)
	cm.Update("cat", "dog", 1)
	cm.Update("dog", "dog", 2)

	assert.Equal(t, []any{"cat", "dog"}, cm.Classes())
	assert.Equal(t, 1.0, cm.FalseNegatives("cat"))
	assert.Equal(t, 1.0, cm.FalsePositives("dog"))
	assert.Equal(t, 4.0, cm.Total())
	assert.Equal(t, "\tcat\tdog\ncat\t1\t1\ndog\t0\t2", cm.String())
}

func TestLogLoss(t *testing.T) {
	m := NewLogLoss()
	require.NoError(t, m.Update(true, core.Proba{true: 0.9, false: 0.1}, 1))
	require.NoError(t, m.Update(false, core.Proba{true: 0.4, false: 0.6}, 1))
	want := (-math.Log(0.9) - math.Log(0.6)) / 2
	assert.InDelta(t, want, m.Get(), 1e-12)
	assert.False(t, m.BiggerIsBetter())

	// 概率为 0 时裁剪，损失有限
	require.NoError(t, m.Update(true, core.Proba{false: 1}, 1))
	assert.False(t, math.IsInf(m.Get(), 0))
}

func TestRolling(t *testing.T) {
	r, err := NewRolling(NewMAE(), 2)
	require.NoError(t, err)
	feed(t, r, []any{0.0, 0.0, 0.0}, []any{1.0, 2.0, 3.0})
	assert.InDelta(t, 2.5, r.Get(), 1e-12)
	assert.Equal(t, "Rolling(MAE, 2): 2.5", r.String())
	assert.True(t, core.IsNotSupported(r.Revert(0.0, 1.0, 1)))

	_, err = NewRolling(NewMAE(), 0)
	assert.True(t, core.IsInvalidInput(err))
}

func TestMetricsContainer(t *testing.T) {
	ms := Metrics{NewMAE(), NewMSE()}
	feed(t, ms, []any{3, -0.5, 2, 7}, []any{2.5, 0.0, 2, 8})
	assert.Equal(t, "MAE: 0.5, MSE: 0.375", ms.String())
	assert.Equal(t, []float64{0.5, 0.375}, ms.Values())
	assert.InDelta(t, 0.5, ms.Get(), 1e-12)
	assert.False(t, ms.RequiresLabels())
}

type fakeRegressor struct{}

func (fakeRegressor) Name() string                              { return "fakeRegressor" }
func (fakeRegressor) LearnOne(core.Features, any) error         { return nil }
func (fakeRegressor) PredictOne(core.Features) (float64, error) { return 0, nil }

type fakeClassifier struct{}

func (fakeClassifier) Name() string                                      { return "fakeClassifier" }
func (fakeClassifier) LearnOne(core.Features, any) error                 { return nil }
func (fakeClassifier) PredictProbaOne(core.Features) (core.Proba, error) { return nil, nil }

func TestWorksWith(t *testing.T) {
	assert.True(t, NewMAE().WorksWith(fakeRegressor{}))
	assert.False(t, NewMAE().WorksWith(fakeClassifier{}))
	assert.True(t, NewLogLoss().WorksWith(fakeClassifier{}))
	assert.False(t, NewAccuracy().WorksWith(fakeRegressor{}))
}

func TestNew(t *testing.T) {
	m, err := New("RMSE")
	require.NoError(t, err)
	assert.Equal(t, "RMSE", m.Name())

	_, err = New("auc")
	assert.True(t, core.IsNotFound(err))
}
