package sim

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WritePLY writes points as an ASCII PLY point cloud with x, y, z and
// intensity properties.
func WritePLY(w io.Writer, points []LidarPoint) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\nelement vertex %d\n", len(points))
	bw.WriteString("property float32 x\nproperty float32 y\nproperty float32 z\nproperty float32 I\nend_header\n")
	for _, p := range points {
		fmt.Fprintf(bw, "%s %s %s %s\n",
			formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z), formatFloat(p.Intensity))
	}
	return bw.Flush()
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', 4, 32)
}

// ReadPLY reads an ASCII PLY file written by WritePLY. Vertex properties
// beyond the first four are ignored; a missing fourth property leaves the
// intensity at zero.
func ReadPLY(r io.Reader) ([]LidarPoint, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "ply" {
		return nil, fmt.Errorf("not a PLY file")
	}
	count := -1
	props := 0
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "ascii" {
				return nil, fmt.Errorf("unsupported PLY format %q", strings.Join(fields[1:], " "))
			}
		case "element":
			if len(fields) == 3 && fields[1] == "vertex" {
				n, err := strconv.Atoi(fields[2])
				if err != nil || n < 0 {
					return nil, fmt.Errorf("invalid vertex count %q", fields[2])
				}
				count = n
			}
		case "property":
			props++
		}
		if fields[0] == "end_header" {
			break
		}
	}
	if count < 0 {
		return nil, fmt.Errorf("PLY header has no vertex element")
	}
	if props < 3 {
		return nil, fmt.Errorf("PLY vertex needs at least x, y, z, got %d properties", props)
	}

	points := make([]LidarPoint, 0, count)
	for len(points) < count && sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("vertex %d: expected at least 3 values", len(points))
		}
		var vals [4]float32
		for i := 0; i < 4 && i < len(fields); i++ {
			v, err := strconv.ParseFloat(fields[i], 32)
			if err != nil {
				return nil, fmt.Errorf("vertex %d: %w", len(points), err)
			}
			vals[i] = float32(v)
		}
		points = append(points, LidarPoint{X: vals[0], Y: vals[1], Z: vals[2], Intensity: vals[3]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(points) != count {
		return nil, fmt.Errorf("PLY declares %d vertices, found %d", count, len(points))
	}
	return points, nil
}
