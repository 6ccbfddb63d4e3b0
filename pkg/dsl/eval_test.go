package dsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/flowml/core"
)

func TestEvalBool(t *testing.T) {
	x := core.Features{"price": 12.5, "city": "paris", "qty": 3}
	tests := []struct {
		expr string
		y    any
		want bool
	}{
		{`x.price > 10.0`, nil, true},
		{`x.city == "paris" && x.qty == 3`, nil, true},
		{`has(x.missing)`, nil, false},
		{`y == true`, true, true},
		{`y == null`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := e.EvalBool(x, tt.y)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalFloat(t *testing.T) {
	e := MustCompile(`x.price * 2.0`)
	got, err := e.EvalFloat(core.Features{"price": 1.5}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	_, err = MustCompile(`x.city`).EvalFloat(core.Features{"city": "paris"}, nil)
	assert.Error(t, err)
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile("")
	assert.Error(t, err)

	_, err = Compile(`x.price >`)
	assert.Error(t, err)

	_, err = MustCompile(`x.price`).EvalBool(core.Features{"price": 1.0}, nil)
	assert.Error(t, err, "non-boolean result")

	_, err = MustCompile(`x.missing > 1.0`).EvalBool(core.Features{}, nil)
	assert.Error(t, err, "missing key")
}
