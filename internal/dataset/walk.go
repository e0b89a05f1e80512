package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/scenario.report/internal/monitoring"
)

// ListFrames returns the sorted frame numbers of files with the given
// extension in dir. Files that do not parse as frame numbers are ignored.
func ListFrames(dir, ext string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames in %s: %w", dir, err)
	}
	suffix := "." + strings.TrimPrefix(ext, ".")
	var frames []int
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), suffix) {
			continue
		}
		n, err := ParseFrameNumber(e.Name())
		if err != nil {
			monitoring.Debugf("skipping %s: %v", e.Name(), err)
			continue
		}
		frames = append(frames, n)
	}
	sort.Ints(frames)
	return frames, nil
}

// Walk enumerates every variant directory under root in deterministic
// order. When types is empty all scenario types are visited. Directories
// that are not scenario types are skipped.
func Walk(root string, types ...ScenarioType) ([]ScenarioRef, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("dataset root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset root %s is not a directory", root)
	}

	wanted := types
	if len(wanted) == 0 {
		wanted = ScenarioTypes
	}

	var refs []ScenarioRef
	for _, typ := range wanted {
		typeDir := filepath.Join(root, string(typ))
		scenarios, err := subdirs(typeDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, id := range scenarios {
			variants, err := subdirs(filepath.Join(typeDir, id, VariantDirName))
			if err != nil {
				if os.IsNotExist(err) {
					monitoring.Debugf("scenario %s/%s has no %s directory", typ, id, VariantDirName)
					continue
				}
				return nil, err
			}
			for _, v := range variants {
				refs = append(refs, ScenarioRef{Root: root, Type: typ, ScenarioID: id, Variant: v})
			}
		}
	}
	return refs, nil
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
