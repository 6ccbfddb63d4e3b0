package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFixtures(t *testing.T) (data, pipeline string) {
	t.Helper()
	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("city,x,y\n")
	for i := 0; i < 500; i++ {
		x := float64(i%10) / 10
		fmt.Fprintf(&b, "paris,%g,%g\n", x, 2*x+1)
	}
	data = filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(data, []byte(b.String()), 0o600))

	pipeline = filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(pipeline, []byte(`
pipeline:
  name: linear
  steps:
    - type: compose.discard
      config: {fields: [city]}
    - type: preprocessing.standard_scaler
    - type: model.linear_regression
      config: {lr: 0.05}
`), 0o600))
	return data, pipeline
}

func TestStepsCommand(t *testing.T) {
	out, err := run(t, "steps")
	require.NoError(t, err)
	assert.Contains(t, out, "model.linear_regression\n")
	assert.Contains(t, out, "feature.feast\n")
}

func TestEvaluateCommand(t *testing.T) {
	data, pipeline := writeFixtures(t)
	logFile := filepath.Join(t.TempDir(), "flowml.log")

	out, err := run(t, "evaluate", "--data", data, "--target", "y", "--pipeline", pipeline,
		"--metric", "mae,rmse", "--delay", "5", "--print-every", "100", "--log-file", logFile)
	require.NoError(t, err)
	assert.Regexp(t, `^MAE: [0-9.]+, RMSE: [0-9.]+\n$`, out)

	logs, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logs), `"msg":"progressive validation"`)
}

func TestEvaluateCommandErrors(t *testing.T) {
	data, pipeline := writeFixtures(t)

	_, err := run(t, "evaluate", "--data", data, "--target", "y")
	assert.Error(t, err, "missing --pipeline")

	_, err = run(t, "evaluate", "--data", data, "--target", "y", "--pipeline", pipeline, "--metric", "auc")
	assert.ErrorContains(t, err, "unknown metric")

	_, err = run(t, "evaluate", "--data", data, "--target", "y", "--pipeline", pipeline, "--target-type", "complex")
	assert.ErrorContains(t, err, "target-type")

	_, err = run(t, "evaluate", "--data", data, "--target", "y", "--pipeline", pipeline, "--metric", "accuracy")
	assert.ErrorContains(t, err, "does not work with")
}
