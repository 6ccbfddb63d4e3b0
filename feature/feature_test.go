package feature

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/flowml/compose"
	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/feast"
	"github.com/rushteam/flowml/store"
)

func TestAgg(t *testing.T) {
	agg, err := NewAgg("revenue", []string{"shop"}, "mean")
	require.NoError(t, err)
	assert.Equal(t, "revenue_mean_by_shop", agg.FeatureName())

	for _, x := range []core.Features{
		{"shop": "A", "revenue": 10},
		{"shop": "A", "revenue": 20},
		{"shop": "B", "revenue": 7},
		{"shop": "B"},
	} {
		require.NoError(t, agg.LearnOne(x))
	}

	tests := []struct {
		shop string
		want float64
	}{
		{"A", 15}, {"B", 7}, {"C", 0},
	}
	for _, tt := range tests {
		out, err := agg.TransformOne(core.Features{"shop": tt.shop})
		require.NoError(t, err)
		assert.Equal(t, core.Features{"revenue_mean_by_shop": tt.want}, out, "shop=%s", tt.shop)
	}
}

func TestAggGroupsDoNotCollide(t *testing.T) {
	agg, err := NewAgg("v", []string{"shop", "day"}, "mean")
	require.NoError(t, err)
	require.NoError(t, agg.LearnOne(core.Features{"shop": "a_b", "day": "c", "v": 100}))
	require.NoError(t, agg.LearnOne(core.Features{"shop": "1:a", "day": "", "v": 50}))

	tests := []struct {
		shop, day string
		want      float64
	}{
		{"a_b", "c", 100},
		{"a", "b_c", 0},
		{"a_b_c", "", 0},
		{"1:a", "", 50},
		{"1", "a0:", 0},
	}
	for _, tt := range tests {
		out, err := agg.TransformOne(core.Features{"shop": tt.shop, "day": tt.day})
		require.NoError(t, err)
		assert.Equal(t, core.Features{"v_mean_by_shop_and_day": tt.want}, out, "shop=%q day=%q", tt.shop, tt.day)
	}
}

func TestAggNames(t *testing.T) {
	tests := []struct {
		on   string
		by   []string
		how  string
		want string
	}{
		{"x", nil, "count", "x_count"},
		{"x", []string{"a", "b"}, "max", "x_max_by_a_and_b"},
		{"x", []string{"a"}, "ewm:0.5", "x_ewm_0.5_by_a"},
		{"x", []string{"a"}, "rolling_mean:7", "x_rolling_mean_7_by_a"},
	}
	for _, tt := range tests {
		agg, err := NewAgg(tt.on, tt.by, tt.how)
		require.NoError(t, err)
		assert.Equal(t, tt.want, agg.FeatureName())
	}

	_, err := NewAgg("x", nil, "median")
	assert.True(t, core.IsInvalidInput(err))
}

func TestTargetAggInPipelineExcludesOwnTarget(t *testing.T) {
	ta, err := NewTargetAgg([]string{"user"}, "mean", "")
	require.NoError(t, err)
	assert.Equal(t, "target_mean_by_user", ta.FeatureName())

	p := compose.MustPipeline(compose.NewTransformerUnion(compose.NewSelect("user"), ta))

	var seen []float64
	for _, y := range []float64{2, 4, 6} {
		x := core.Features{"user": "u1"}
		out, err := p.TransformOne(x)
		require.NoError(t, err)
		seen = append(seen, out["target_mean_by_user"].(float64))
		require.NoError(t, p.LearnOne(x, y))
	}
	assert.Equal(t, []float64{0, 2, 3}, seen)

	assert.ErrorIs(t, ta.LearnOne(core.Features{"user": "u1"}, "bad"), core.ErrInvalidTarget)
}

// fakeFeast 是内存版 Feast 客户端。
type fakeFeast struct {
	calls  int
	values map[string]map[string]any
	err    error
}

func (f *fakeFeast) GetOnlineFeatures(_ context.Context, req *feast.GetOnlineFeaturesRequest) (*feast.GetOnlineFeaturesResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	resp := &feast.GetOnlineFeaturesResponse{}
	for _, row := range req.EntityRows {
		id := row["driver_id"].(string)
		resp.FeatureVectors = append(resp.FeatureVectors, feast.FeatureVector{Values: f.values[id], EntityRow: row})
	}
	return resp, nil
}

func (f *fakeFeast) Close() error { return nil }

func TestFeastEnricher(t *testing.T) {
	client := &fakeFeast{values: map[string]map[string]any{
		"d1": {"driver_stats:conv_rate": 0.5},
	}}
	cache := store.NewMemoryStore()
	defer cache.Close()

	e, err := NewFeastEnricher(client, "driver", []string{"driver_stats:conv_rate"},
		WithEntityKey("driver_id"), WithPrefix("feast_"), WithCache(cache, 60))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		out, err := e.TransformOne(core.Features{"driver": "d1", "speed": 3.0})
		require.NoError(t, err)
		assert.Equal(t, core.Features{"driver": "d1", "speed": 3.0, "feast_conv_rate": 0.5}, out)
	}
	assert.Equal(t, 1, client.calls, "second lookup must hit the cache")

	out, err := e.TransformOne(core.Features{"speed": 1.0})
	require.NoError(t, err)
	assert.Equal(t, core.Features{"speed": 1.0}, out)
}

func TestFeastEnricherFallback(t *testing.T) {
	unavailable := core.NewDomainError(core.ModuleFeature, core.ErrorCodeUnavailable, "down")
	client := &fakeFeast{err: unavailable}

	e, err := NewFeastEnricher(client, "driver_id", []string{"driver_stats:conv_rate"})
	require.NoError(t, err)
	_, err = e.TransformOne(core.Features{"driver_id": "d1"})
	assert.True(t, core.IsUnavailable(err))
	assert.True(t, errors.Is(err, unavailable))

	e, err = NewFeastEnricher(client, "driver_id", []string{"driver_stats:conv_rate"},
		WithDefaults(map[string]any{"conv_rate": 0.1}))
	require.NoError(t, err)
	out, err := e.TransformOne(core.Features{"driver_id": "d1"})
	require.NoError(t, err)
	assert.Equal(t, 0.1, out["conv_rate"])

	_, err = NewFeastEnricher(nil, "driver_id", []string{"a"})
	assert.True(t, core.IsInvalidInput(err))
}
