package risk

// EvaluateFrames treats every (frame, object) score as a sample. A sample
// is predicted positive when its score is at least threshold, and actually
// positive when the object is the scenario's ground-truth object.
func EvaluateFrames(table Table, gt GroundTruth, threshold float64) (Confusion, error) {
	if err := checkThreshold(threshold); err != nil {
		return Confusion{}, err
	}
	if len(table) == 0 {
		return Confusion{}, ErrEmptyTable
	}
	var c Confusion
	for _, key := range table.Keys() {
		gtID := gt[key]
		for _, f := range table[key] {
			for id, score := range f.Scores {
				predicted := score >= threshold
				actual := gtID != "" && id == gtID
				switch {
				case predicted && actual:
					c.TP++
				case predicted:
					c.FP++
				case actual:
					c.FN++
				default:
					c.TN++
				}
			}
		}
	}
	return c, nil
}
