package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/banshee-data/scenario.report/internal/collect"
	"github.com/banshee-data/scenario.report/internal/dataset"
	"github.com/banshee-data/scenario.report/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const replayPlan = `
scenario_type: obstacle
scenario_id: "5"
town: Town05
actor_type: cone
seed: 3
synchronous: true
record: true
sensors:
  - {name: rgb, kind: rgb}
  - {name: instance_segmentation, kind: instance_segmentation}
`

func TestRun_ReplaysIntoDataset(t *testing.T) {
	src := testutil.RecordVariant(t, t.TempDir(), dataset.Obstacle, "5", "Town05_ClearNoon_cone_3", testutil.Recording{Frames: 4})
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(replayPlan), 0o644))

	o := options{
		PlanPath:  planPath,
		Root:      filepath.Join(dir, "out"),
		DevDir:    src.Dir(),
		StatsPath: filepath.Join(dir, "stats.json"),
	}
	stats, err := run(context.Background(), o, nil)
	require.NoError(t, err)
	assert.Equal(t, collect.StopExhausted, stats.Reason)
	assert.Equal(t, 4, stats.Ticks)

	ref, err := dataset.NewScenarioRef(o.Root, dataset.Obstacle, "5", "Town05_ClearNoon_cone_3")
	require.NoError(t, err)
	frames, err := dataset.ListFrames(ref.SensorDir(testutil.MaskSensor), "png")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, frames)

	data, err := os.ReadFile(o.StatsPath)
	require.NoError(t, err)
	var written collect.RunStats
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, 4, written.Session.Written["rgb"])
}

func TestRun_QuitKey(t *testing.T) {
	src := testutil.RecordVariant(t, t.TempDir(), dataset.Obstacle, "5", "Town05_ClearNoon_cone_3", testutil.Recording{Frames: 4})
	dir := t.TempDir()
	planPath := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(replayPlan), 0o644))

	keys := make(chan collect.Key, 1)
	keys <- collect.KeyQuit
	stats, err := run(context.Background(), options{PlanPath: planPath, Root: dir, DevDir: src.Dir()}, keys)
	require.NoError(t, err)
	assert.Equal(t, collect.StopQuit, stats.Reason)
}

func TestRun_Errors(t *testing.T) {
	_, err := run(context.Background(), options{}, nil)
	assert.Error(t, err)

	planPath := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(replayPlan), 0o644))
	_, err = run(context.Background(), options{PlanPath: planPath, Root: t.TempDir()}, nil)
	assert.ErrorIs(t, err, errNoSimulator)
}
