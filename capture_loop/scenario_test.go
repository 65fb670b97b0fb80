package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `{
		"meta": {"name": "test", "version": 1},
		"timing": {"duration_s": 600},
		"initial": {"position_m": [0,0,0], "velocity_ms": [0,0,0]},
		"debris": [
			{"name": "obj", "position_m": [800,0,0], "velocity_ms": [0,0,0], "mass_kg": 120}
		]
	}`)

	scen, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "sim", scen.Meta.Mode, "mode defaults to sim")
	assert.InDelta(t, 600, scen.Timing.DurationS, 1e-9)
	require.Len(t, scen.Debris, 1)
}

func TestLoadScenario_Rejections(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"zero duration", `{"meta":{"name":"x"},"timing":{"duration_s":0},"debris":[{"name":"d","mass_kg":1}]}`},
		{"bad mode", `{"meta":{"name":"x","mode":"hil"},"timing":{"duration_s":10},"debris":[{"name":"d","mass_kg":1}]}`},
		{"sim without debris", `{"meta":{"name":"x","mode":"sim"},"timing":{"duration_s":10},"debris":[]}`},
		{"nonpositive mass", `{"meta":{"name":"x"},"timing":{"duration_s":10},"debris":[{"name":"d","mass_kg":0}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenario_ShippedAssets(t *testing.T) {
	for _, name := range []string{"leo_single_target.json", "leo_multi_target_faults.json"} {
		scen, err := LoadScenario(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, scen.Debris, name)
	}
}

func TestScenario_CatalogIsRelativeToChaser(t *testing.T) {
	scen := Scenario{
		Initial: InitialState{PositionM: [3]float64{100, 0, 0}},
		Debris: []DebrisEntry{
			{Name: "obj", PositionM: [3]float64{900, 60, 0}, VelocityMS: [3]float64{0.1, 0, 0}, MassKg: 50},
		},
	}

	now := time.Now()
	catalog := scen.Catalog(now)
	require.Len(t, catalog, 1)

	c := catalog[0]
	assert.Equal(t, "obj", c.Name)
	assert.InDelta(t, 50, c.EstimatedMassKg, 1e-9)
	assert.InDelta(t, -800, c.State.Position[0], 1e-9)
	assert.InDelta(t, -60, c.State.Position[1], 1e-9)
	assert.InDelta(t, -0.1, c.State.Velocity[0], 1e-9)
	assert.True(t, c.State.Valid)
	assert.Equal(t, now, c.State.Timestamp)
	assert.NotEqual(t, c.ID.String(), "00000000-0000-0000-0000-000000000000")
}
