package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenarioType(t *testing.T) {
	for _, typ := range ScenarioTypes {
		got, err := ParseScenarioType(string(typ))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseScenarioType("highway")
	assert.Error(t, err)

	assert.True(t, Interactive.HasRiskObject())
	assert.True(t, Collision.HasRiskObject())
	assert.False(t, NonInteractive.HasRiskObject())
}

func TestVariantRoundTrip(t *testing.T) {
	v := Variant{Town: "Town10HD", Weather: "ClearNoon", ActorType: "mid_walker", Seed: 1234}
	name := v.Name()
	assert.Equal(t, "Town10HD_ClearNoon_mid_walker_1234", name)

	parsed, err := ParseVariant(name)
	require.NoError(t, err)
	assert.Equal(t, v, parsed)
}

func TestParseVariant_Invalid(t *testing.T) {
	for _, name := range []string{"", "Town01", "Town01_Clear_low", "Town01_Clear_low_seed", "_Clear_low_3"} {
		_, err := ParseVariant(name)
		assert.Error(t, err, "ParseVariant(%q)", name)
	}
}

func TestScenarioRefPaths(t *testing.T) {
	root := t.TempDir()
	ref, err := NewScenarioRef(root, Interactive, "10_t1-2_1_p_c_l_1_0", "Town10HD_ClearNoon_low_3")
	require.NoError(t, err)

	wantDir := filepath.Join(root, "interactive", "10_t1-2_1_p_c_l_1_0", "variant_scenario", "Town10HD_ClearNoon_low_3")
	assert.Equal(t, wantDir, ref.Dir())
	assert.Equal(t, filepath.Join(wantDir, "rgb_front", "00000042.png"), ref.FramePath("rgb_front", 42, "png"))
	assert.Equal(t, filepath.Join(wantDir, "lidar", "00000007.ply"), ref.FramePath("lidar", 7, ".ply"))
	assert.Equal(t, filepath.Join(wantDir, "bbox", "rgb_front.json"), ref.BoxPath("rgb_front"))
	assert.Equal(t, "10_t1-2_1_p_c_l_1_0/Town10HD_ClearNoon_low_3", ref.Key())
	assert.Equal(t, "interactive/10_t1-2_1_p_c_l_1_0/Town10HD_ClearNoon_low_3", ref.String())
}

func TestNewScenarioRef_Rejects(t *testing.T) {
	root := t.TempDir()
	_, err := NewScenarioRef(root, "highway", "a", "b")
	assert.Error(t, err)
	_, err = NewScenarioRef(root, Obstacle, "../../etc", "b")
	assert.Error(t, err)
	_, err = NewScenarioRef(root, Obstacle, "a", "..")
	assert.Error(t, err)
	_, err = NewScenarioRef(root, Obstacle, "", "b")
	assert.Error(t, err)
}

func TestParseFrameNumber(t *testing.T) {
	n, err := ParseFrameNumber("/x/y/00000123.png")
	require.NoError(t, err)
	assert.Equal(t, 123, n)

	_, err = ParseFrameNumber("frame.png")
	assert.Error(t, err)
	assert.Equal(t, "00000005.json", FrameFileName(5, "json"))
}

func TestListFrames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"00000010.png", "00000002.png", "00000003.jpg", "notes.png", "00000001.PNG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "00000004.png"), 0o755))

	frames, err := ListFrames(dir, "png")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 10}, frames)

	_, err = ListFrames(filepath.Join(dir, "missing"), "png")
	assert.Error(t, err)
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	mk := func(parts ...string) {
		require.NoError(t, os.MkdirAll(filepath.Join(append([]string{root}, parts...)...), 0o755))
	}
	mk("interactive", "s2", VariantDirName, "Town01_ClearNoon_low_2")
	mk("interactive", "s1", VariantDirName, "Town01_ClearNoon_low_9")
	mk("interactive", "s1", VariantDirName, "Town01_ClearNoon_low_1")
	mk("obstacle", "o1", VariantDirName, "Town03_WetNoon_high_5")
	mk("interactive", "s3") // no variants
	mk("scratch", "tmp", VariantDirName, "x_y_z_1")

	refs, err := Walk(root)
	require.NoError(t, err)
	var keys []string
	for _, r := range refs {
		keys = append(keys, r.String())
	}
	assert.Equal(t, []string{
		"interactive/s1/Town01_ClearNoon_low_1",
		"interactive/s1/Town01_ClearNoon_low_9",
		"interactive/s2/Town01_ClearNoon_low_2",
		"obstacle/o1/Town03_WetNoon_high_5",
	}, keys)

	refs, err = Walk(root, Obstacle)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "o1", refs[0].ScenarioID)

	_, err = Walk(filepath.Join(root, "missing"))
	assert.Error(t, err)
}
