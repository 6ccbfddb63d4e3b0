package feast

import (
	"context"
	"testing"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/flowml/core"
)

// TestGrpcClient_GetOnlineFeatures 需要连接真实的 Feast 服务器
func TestGrpcClient_GetOnlineFeatures(t *testing.T) {
	t.Skip("需要连接真实的 Feast 服务器才能运行")

	client, err := NewGrpcClient("localhost", 6565, "test_project")
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.GetOnlineFeatures(context.Background(), &GetOnlineFeaturesRequest{
		Features:   []string{"driver_hourly_stats:conv_rate", "driver_hourly_stats:acc_rate"},
		EntityRows: []map[string]any{{"driver_id": "1001"}, {"driver_id": "1002"}},
	})
	require.NoError(t, err)
	assert.Len(t, resp.FeatureVectors, 2)
}

func TestGetOnlineFeaturesValidation(t *testing.T) {
	c := &GrpcClient{}
	_, err := c.GetOnlineFeatures(context.Background(), &GetOnlineFeaturesRequest{})
	assert.True(t, core.IsInvalidInput(err))

	_, err = c.GetOnlineFeatures(context.Background(), &GetOnlineFeaturesRequest{
		Features:   []string{"v:f"},
		EntityRows: []map[string]any{{"id": 1}},
	})
	assert.True(t, core.IsInvalidInput(err), "project is required")

	c.Project = "p"
	_, err = c.GetOnlineFeatures(context.Background(), &GetOnlineFeaturesRequest{
		Features:   []string{"v:f"},
		EntityRows: []map[string]any{{"id": 1}},
	})
	assert.True(t, core.IsUnavailable(err))
}

func TestSDKValueRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"string", "test", "test"},
		{"int", 100, 100.0},
		{"int64", int64(7), 7.0},
		{"float64", 3.14, 3.14},
		{"bool", true, 1.0},
		{"bytes", []byte("raw"), "raw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fromSDKValue(toSDKValue(tt.in)))
		})
	}
	assert.Nil(t, fromSDKValue(nil))
	assert.Nil(t, fromSDKValue(&types.Value{}))
	assert.Equal(t, 0.0, fromSDKValue(feastsdk.BoolVal(false)))
}

func TestParseEndpoint(t *testing.T) {
	host, port := parseEndpoint("grpc://feast.local:6566")
	assert.Equal(t, "feast.local", host)
	assert.Equal(t, 6566, port)

	host, port = parseEndpoint("feast.local")
	assert.Equal(t, "feast.local", host)
	assert.Equal(t, 0, port)
}
