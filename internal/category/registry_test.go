package category

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siterisk/internal/model"
)

func TestDefault_AllWeightsSumToOne(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, r.Keys())

	for _, c := range r.All() {
		assert.LessOrEqual(t, math.Abs(c.Weights.Sum()-1), WeightTolerance, c.Key)
		assert.Len(t, c.Weights, 5, c.Key)
	}
}

func TestDefault_Lookup(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	cafe, ok := r.Get("cafe")
	require.True(t, ok)
	assert.Equal(t, "food", cafe.Group)
	assert.InDelta(t, 0.30, cafe.Weights[model.DimCompetition], 1e-9)

	assert.True(t, r.Has("laundry"))
	assert.False(t, r.Has("spaceport"))

	laundry, _ := r.Get("laundry")
	assert.True(t, laundry.InverseTraffic)
}

func TestKeysInGroups(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)

	keys := r.KeysInGroups("living")
	assert.Equal(t, []string{"convenience", "hair_salon", "laundry"}, keys)
	assert.Empty(t, r.KeysInGroups("nope"))
}

func TestKeys_ReturnsCopy(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	keys := r.Keys()
	keys[0] = "mutated"
	assert.NotEqual(t, "mutated", r.Keys()[0])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"empty", "categories: []", "registry is empty"},
		{"bad yaml", "categories: [", "decode registry"},
		{
			"weights off",
			`categories: [{key: a, weights: {competition: 0.5, traffic: 0.5, cost: 0.5, survival: 0, anchor: 0}}]`,
			"sum to 1.0",
		},
		{
			"missing dimension",
			`categories: [{key: a, weights: {competition: 0.5, traffic: 0.5}}]`,
			"missing cost weight",
		},
		{
			"duplicate",
			`categories:
  - {key: a, weights: {competition: 0.2, traffic: 0.2, cost: 0.2, survival: 0.2, anchor: 0.2}}
  - {key: a, weights: {competition: 0.2, traffic: 0.2, cost: 0.2, survival: 0.2, anchor: 0.2}}`,
			"duplicate key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	r, err := Parse([]byte(`categories: [{key: a, weights: {competition: 0.2, traffic: 0.2, cost: 0.2, survival: 0.2, anchor: 0.2}}]`))
	require.NoError(t, err)
	c, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", c.Name)
	assert.Equal(t, model.TimeDay, c.PeakTime)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cats.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`categories: [{key: kiosk, group: retail, weights: {competition: 0.2, traffic: 0.2, cost: 0.2, survival: 0.2, anchor: 0.2}}]`), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"kiosk"}, r.Keys())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.True(t, def.Has("cafe"))
}
