package evaluate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rushteam/flowml/compose"
	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/metrics"
	"github.com/rushteam/flowml/model"
	"github.com/rushteam/flowml/optim"
	"github.com/rushteam/flowml/preprocessing"
	"github.com/rushteam/flowml/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// meanRegressor 预测已学到的目标均值，并记录预测/学习顺序。
type meanRegressor struct {
	sum, n float64
	calls  []string
	fail   bool
}

func (m *meanRegressor) Name() string { return "Mean" }

func (m *meanRegressor) LearnOne(x core.Features, y any) error {
	if m.fail {
		return errors.New("boom")
	}
	m.calls = append(m.calls, fmt.Sprintf("learn %v", x["i"]))
	m.sum += y.(float64)
	m.n++
	return nil
}

func (m *meanRegressor) PredictOne(x core.Features) (float64, error) {
	m.calls = append(m.calls, fmt.Sprintf("predict %v", x["i"]))
	if m.n == 0 {
		return 0, nil
	}
	return m.sum / m.n, nil
}

func samples(ys ...float64) []stream.Sample {
	out := make([]stream.Sample, len(ys))
	for i, y := range ys {
		out[i] = stream.Sample{X: core.Features{"i": i}, Y: y}
	}
	return out
}

func TestProgressiveValScore(t *testing.T) {
	m := &meanRegressor{}
	res, err := ProgressiveValScore(context.Background(), stream.FromSlice(samples(1, 2, 3)), m, metrics.NewMAE())
	require.NoError(t, err)

	// 预测依次为 0, 1, 1.5
	assert.InDelta(t, 3.5/3, res.Metric.Get(), 1e-12)
	assert.Equal(t, 3, res.N)
	assert.Equal(t, "Mean", res.Name)
	assert.Equal(t, []string{"predict 0", "learn 0", "predict 1", "learn 1", "predict 2", "learn 2"}, m.calls)
}

func TestProgressiveValScoreWithDelay(t *testing.T) {
	m := &meanRegressor{}
	res, err := ProgressiveValScore(context.Background(), stream.FromSlice(samples(1, 2, 3, 4)), m, metrics.NewMAE(),
		WithMoment(stream.ByIndex()), WithDelay(stream.ConstantDelay(2)))
	require.NoError(t, err)
	assert.Equal(t, 4, res.N)
	assert.Equal(t, []string{
		"predict 0", "predict 1", "learn 0", "predict 2", "learn 1", "predict 3", "learn 2", "learn 3",
	}, m.calls)
	// 预测依次为 0, 0, 1, 1.5
	assert.InDelta(t, (1+2+2+2.5)/4.0, res.Metric.Get(), 1e-12)
}

func TestProgressiveValScoreEmptyStream(t *testing.T) {
	res, err := ProgressiveValScore(context.Background(), stream.FromSlice(nil), &meanRegressor{}, metrics.NewMAE())
	require.NoError(t, err)
	assert.Equal(t, 0, res.N)
	assert.Equal(t, 0.0, res.Metric.Get())
}

func TestProgressiveValScoreRejectsMismatchedMetric(t *testing.T) {
	_, err := ProgressiveValScore(context.Background(), stream.FromSlice(nil), &meanRegressor{}, metrics.NewAccuracy())
	assert.True(t, core.IsInvalidInput(err))
}

func TestProgressiveValScoreLearnError(t *testing.T) {
	_, err := ProgressiveValScore(context.Background(), stream.FromSlice(samples(1)), &meanRegressor{fail: true}, metrics.NewMAE())
	assert.ErrorContains(t, err, "boom")
}

func TestProgressiveValScoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProgressiveValScore(ctx, stream.FromSlice(samples(1)), &meanRegressor{}, metrics.NewMAE())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgressiveValScoreLogsProgress(t *testing.T) {
	obs, logs := observer.New(zapcore.InfoLevel)
	_, err := ProgressiveValScore(context.Background(), stream.FromSlice(samples(1, 2, 3, 4, 5)), &meanRegressor{}, metrics.NewMAE(),
		WithPrintEvery(2), WithLogger(zap.New(obs)))
	require.NoError(t, err)

	entries := logs.FilterMessage("progressive validation").All()
	require.Len(t, entries, 2)
	assert.EqualValues(t, 4, entries[1].ContextMap()["n"])
}

func linearStream(n int) []stream.Sample {
	out := make([]stream.Sample, n)
	for i := range out {
		x := float64(i%10) / 10
		out[i] = stream.Sample{X: core.Features{"x": x}, Y: 2*x + 1}
	}
	return out
}

func TestProgressiveValScorePipeline(t *testing.T) {
	p, err := compose.NewPipeline(preprocessing.NewStandardScaler(), model.NewLinearRegression(optim.NewSGD(0.05)))
	require.NoError(t, err)
	res, err := ProgressiveValScore(context.Background(), stream.FromSlice(linearStream(2000)), p, metrics.NewMAE())
	require.NoError(t, err)
	assert.Less(t, res.Metric.Get(), 0.5)
}

// firstSeen 在学到任何类别之前返回空分布，之后总是预测第一次见到的类别。
type firstSeen struct{ label any }

func (f *firstSeen) Name() string { return "FirstSeen" }
func (f *firstSeen) LearnOne(_ core.Features, y any) error {
	if f.label == nil {
		f.label = y
	}
	return nil
}
func (f *firstSeen) PredictProbaOne(core.Features) (core.Proba, error) {
	if f.label == nil {
		return core.Proba{}, nil
	}
	return core.Proba{f.label: 1}, nil
}

func TestProgressiveValScoreClassifierSkipsEmptyProba(t *testing.T) {
	s := stream.FromSlice([]stream.Sample{
		{X: core.Features{}, Y: true},
		{X: core.Features{}, Y: true},
		{X: core.Features{}, Y: false},
	})
	res, err := ProgressiveValScore(context.Background(), s, &firstSeen{}, metrics.NewAccuracy())
	require.NoError(t, err)
	assert.Equal(t, 3, res.N)
	// 第一条没有预测，不计入指标
	assert.InDelta(t, 0.5, res.Metric.Get(), 1e-12)
}

func TestCompareModels(t *testing.T) {
	factory := func() (stream.Stream, error) { return stream.FromSlice(linearStream(500)), nil }
	candidates := []Candidate{
		{Name: "mean", Model: &meanRegressor{}, Metric: metrics.NewMAE()},
		{Name: "linear", Model: model.NewLinearRegression(optim.NewSGD(0.1)), Metric: metrics.NewMAE()},
	}
	results, err := CompareModels(context.Background(), factory, candidates, WithMaxConcurrent(1))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "mean", results[0].Name)
	assert.Equal(t, "linear", results[1].Name)
	assert.Equal(t, 500, results[0].N)
	assert.Equal(t, 1, Best(results))
	assert.Equal(t, -1, Best(nil))
}

func TestCompareModelsError(t *testing.T) {
	factory := func() (stream.Stream, error) { return stream.FromSlice(samples(1, 2)), nil }
	_, err := CompareModels(context.Background(), factory, []Candidate{
		{Name: "ok", Model: &meanRegressor{}, Metric: metrics.NewMAE()},
		{Name: "broken", Model: &meanRegressor{fail: true}, Metric: metrics.NewMAE()},
	})
	assert.ErrorContains(t, err, "broken")

	_, err = CompareModels(context.Background(), nil, nil)
	assert.True(t, core.IsInvalidInput(err))
}
