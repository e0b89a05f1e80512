package sim

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPLY_RoundTrip(t *testing.T) {
	points := []LidarPoint{
		{X: 1.5, Y: -2.25, Z: 0.125, Intensity: 0.5},
		{X: 0, Y: 0, Z: 0, Intensity: 1},
	}
	var buf bytes.Buffer
	if err := WritePLY(&buf, points); err != nil {
		t.Fatalf("WritePLY() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "ply\nformat ascii 1.0\nelement vertex 2\n") {
		t.Errorf("unexpected header:\n%s", buf.String())
	}

	got, err := ReadPLY(&buf)
	if err != nil {
		t.Fatalf("ReadPLY() error = %v", err)
	}
	if diff := cmp.Diff(points, got); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestReadPLY_Errors(t *testing.T) {
	tests := map[string]string{
		"not ply":        "obj\n",
		"binary":         "ply\nformat binary_little_endian 1.0\nelement vertex 0\nend_header\n",
		"no vertex":      "ply\nformat ascii 1.0\nend_header\n",
		"short vertex":   "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n1 2\n",
		"missing points": "ply\nformat ascii 1.0\nelement vertex 2\nproperty float x\nproperty float y\nproperty float z\nend_header\n1 2 3\n",
		"bad number":     "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n1 x 3\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadPLY(strings.NewReader(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestReadPLY_ThreeProperties(t *testing.T) {
	in := "ply\nformat ascii 1.0\nelement vertex 1\nproperty float x\nproperty float y\nproperty float z\nend_header\n1 2 3\n"
	got, err := ReadPLY(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]LidarPoint{{X: 1, Y: 2, Z: 3}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSensorKind(t *testing.T) {
	if _, err := ParseSensorKind("thermal"); err == nil {
		t.Error("expected error for unknown kind")
	}
	k, err := ParseSensorKind("lidar")
	if err != nil || k.Ext() != "ply" {
		t.Errorf("lidar = (%v, %v)", k, err)
	}
	if RGB.Ext() != "png" || InstanceSegmentation.Ext() != "png" {
		t.Error("camera kinds should store png")
	}
}

func TestSensorSpec_Validate(t *testing.T) {
	if err := (SensorSpec{Kind: RGB}).Validate(); err == nil {
		t.Error("expected error for missing name")
	}
	if err := (SensorSpec{Name: "cam", Kind: "x"}).Validate(); err == nil {
		t.Error("expected error for bad kind")
	}
	if err := (SensorSpec{Name: "cam", Kind: RGB, Width: 800, Height: 600}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
