package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRange(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []any
	}{
		{name: "string with step", value: "2:10:2", want: []any{"2:10:2"}},
		{name: "string without step", value: "1:8", want: []any{"1:8:1"}},
		{name: "mapping", value: map[string]any{"start": 1, "stop": 16, "step": 3}, want: []any{"1:16:3"}},
		{name: "mapping default step", value: map[string]any{"start": 4, "stop": 4}, want: []any{"4:4:1"}},
		{name: "list unchanged", value: []any{1, 2, 4}, want: []any{1, 2, 4}},
		{name: "int list", value: []int{8, 16}, want: []any{8, 16}},
		{name: "scalar", value: 7, want: []any{7}},
		{name: "float scalar", value: 3.0, want: []any{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRange("concurrency", tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeRangeErrors(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "start after stop", value: map[string]any{"start": 5, "stop": 2}},
		{name: "string start after stop", value: "9:3"},
		{name: "missing colon", value: "12"},
		{name: "too many segments", value: "1:2:3:4"},
		{name: "one key", value: map[string]any{"start": 1}},
		{name: "unknown key", value: map[string]any{"start": 1, "stop": 4, "stride": 2}},
		{name: "two keys without stop", value: map[string]any{"start": 1, "step": 2}},
		{name: "non numeric", value: "a:b"},
		{name: "zero step", value: "1:4:0"},
		{name: "fractional scalar", value: 2.5},
		{name: "bool scalar", value: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeRange("concurrency", tt.value)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T", err)
			assert.Equal(t, "concurrency", verr.Field)
			assert.NotEmpty(t, verr.Reason)
		})
	}
}

func TestExpandRange(t *testing.T) {
	got, err := ExpandRange("concurrency", []any{"2:10:2"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6, 8, 10}, got)

	got, err = ExpandRange("concurrency", []any{"1:10:4"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 9}, got)

	got, err = ExpandRange("concurrency", []any{1, "3", 8.0})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 8}, got)

	_, err = ExpandRange("concurrency", []any{"x"})
	require.Error(t, err)
}

func TestNormalizeAndExpand(t *testing.T) {
	got, err := NormalizeAndExpand("instance_count", map[string]any{"start": 1, "stop": 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)

	_, err = NormalizeAndExpand("instance_count", map[string]any{"start": 5, "stop": 2})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "instance_count", verr.Field)
}

func TestExpandRangeNearIntLimits(t *testing.T) {
	// a range ending at MaxInt must terminate instead of wrapping around
	got, err := NormalizeAndExpand("concurrency", "9223372036854775806:9223372036854775807:2")
	require.NoError(t, err)
	assert.Equal(t, []int{9223372036854775806}, got)

	got, err = NormalizeAndExpand("concurrency", "9223372036854775805:9223372036854775807")
	require.NoError(t, err)
	assert.Equal(t, []int{9223372036854775805, 9223372036854775806, 9223372036854775807}, got)
}

func TestExpandRangeLengthLimit(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "long range", value: "1:50000000"},
		{name: "full int span", value: "-9223372036854775808:9223372036854775807"},
		{name: "mapping", value: map[string]any{"start": 0, "stop": MaxRangeValues}},
		{name: "long list", value: make([]any, MaxRangeValues+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeAndExpand("parameters.concurrency", tt.value)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "parameters.concurrency", verr.Field)
			assert.Contains(t, verr.Reason, "more than")
		})
	}

	got, err := NormalizeAndExpand("parameters.concurrency", map[string]any{"start": 1, "stop": MaxRangeValues})
	require.NoError(t, err)
	assert.Len(t, got, MaxRangeValues)

	// the limit applies to the whole field, not to each range
	_, err = ExpandRange("parameters.concurrency", []any{"1:6000", "1:6000"})
	require.Error(t, err)
}

func TestNormalizeRangeRejectsOverflowingFloats(t *testing.T) {
	for _, v := range []float64{1e19, -1e19, 9223372036854775808.0} {
		_, err := NormalizeRange("concurrency", v)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "value %v", v)
		assert.Contains(t, verr.Reason, "overflows int")
	}

	got, err := NormalizeRange("concurrency", -9223372036854775808.0)
	require.NoError(t, err)
	assert.Equal(t, []any{-9223372036854775808}, got)
}
