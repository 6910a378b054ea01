package bounds

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindCodeTable(t *testing.T) {
	tests := []struct {
		kind Kind
		code int32
		name string
	}{
		{Unbounded, -1, "unbounded"},
		{UpperOnly, 0, "upper"},
		{LowerOnly, 1, "lower"},
		{BothSided, 2, "both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.kind.Code())
			assert.Equal(t, tt.name, tt.kind.String())

			decoded, err := FromCode(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, decoded)

			parsed, err := ParseKind(" " + tt.name + " ")
			require.NoError(t, err)
			assert.Equal(t, tt.kind, parsed)
		})
	}
}

func TestFromCode_Unknown(t *testing.T) {
	for _, code := range []int32{-2, 3, 42} {
		_, err := FromCode(code)
		assert.Error(t, err, "code %d", code)
	}
}

func TestKindActiveLimits(t *testing.T) {
	assert.False(t, Unbounded.HasLower())
	assert.False(t, Unbounded.HasUpper())
	assert.True(t, UpperOnly.HasUpper())
	assert.False(t, UpperOnly.HasLower())
	assert.True(t, LowerOnly.HasLower())
	assert.False(t, LowerOnly.HasUpper())
	assert.True(t, BothSided.HasLower())
	assert.True(t, BothSided.HasUpper())
}

func TestKindText(t *testing.T) {
	var payload struct {
		Kinds []Kind `json:"kinds"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"kinds":["both","UPPER","lower","unbounded"]}`), &payload))
	assert.Equal(t, []Kind{BothSided, UpperOnly, LowerOnly, Unbounded}, payload.Kinds)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kinds":["both","upper","lower","unbounded"]}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"kinds":["sideways"]}`), &payload))
	assert.False(t, Kind(7).Valid())
	assert.Panics(t, func() { Kind(7).Code() })
}
