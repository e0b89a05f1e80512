package risk

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTable_DecodesGoConfidence(t *testing.T) {
	path := writeFile(t, "risk.json", `{
		"10_t1-1/Town10HD_ClearNoon_low_1": {
			"12": {"scenario_go": 0.25, "7": 0.9, "8": 0.1},
			"3":  {"7": 0.4, "9": null}
		}
	}`)

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable() error = %v", err)
	}
	series := table.Series("10_t1-1/Town10HD_ClearNoon_low_1")
	want := []FrameAt{
		{Number: 3, Frame: Frame{Scores: map[string]float64{"7": 0.4}}},
		{Number: 12, Frame: Frame{Go: 0.25, HasGo: true, Scores: map[string]float64{"7": 0.9, "8": 0.1}}},
	}
	if diff := cmp.Diff(want, series); diff != "" {
		t.Errorf("Series() mismatch (-want +got):\n%s", diff)
	}
}

func TestFrame_MarshalRoundTrip(t *testing.T) {
	in := Frame{Go: 0.5, HasGo: true, Scores: map[string]float64{"4": 0.3}}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"4":0.3,"scenario_go":0.5}` {
		t.Errorf("Marshal() = %s", data)
	}
	var out Frame
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadGroundTruth_AcceptsStringNumberNull(t *testing.T) {
	path := writeFile(t, "gt.json", `{"a": "12", "b": 7, "c": null, "d": ""}`)
	gt, err := LoadGroundTruth(path)
	if err != nil {
		t.Fatalf("LoadGroundTruth() error = %v", err)
	}
	want := GroundTruth{"a": "12", "b": "7", "c": "", "d": ""}
	if diff := cmp.Diff(want, gt); diff != "" {
		t.Errorf("ground truth mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := LoadTable(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing table")
	}
	if _, err := LoadTable(writeFile(t, "bad.json", `{"k": {"x": {}}}`)); err == nil {
		t.Error("expected error for non-numeric frame key")
	}
	if _, err := LoadGroundTruth(writeFile(t, "gt.json", `{"k": [1]}`)); err == nil {
		t.Error("expected error for array object id")
	}
}

func TestTable_Keys(t *testing.T) {
	table := Table{"b": nil, "a": nil, "c": nil}
	if diff := cmp.Diff([]string{"a", "b", "c"}, table.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}
