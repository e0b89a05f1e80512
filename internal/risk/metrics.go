package risk

// Confusion counts outcomes across scenarios or samples.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TN int `json:"tn"`
}

// Add counts one outcome.
func (c *Confusion) Add(o Outcome) {
	switch o {
	case TruePositive:
		c.TP++
	case FalsePositive:
		c.FP++
	case FalseNegative:
		c.FN++
	default:
		c.TN++
	}
}

// Total is the number of counted outcomes.
func (c Confusion) Total() int {
	return c.TP + c.FP + c.FN + c.TN
}

// Precision = TP / (TP + FP), 0 when nothing was predicted positive.
func (c Confusion) Precision() float64 {
	return ratio(c.TP, c.TP+c.FP)
}

// Recall = TP / (TP + FN), 0 when there are no actual positives.
func (c Confusion) Recall() float64 {
	return ratio(c.TP, c.TP+c.FN)
}

// F1 is the harmonic mean of precision and recall.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Accuracy = (TP + TN) / total.
func (c Confusion) Accuracy() float64 {
	return ratio(c.TP+c.TN, c.Total())
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Point is one threshold of a precision/recall curve.
type Point struct {
	Threshold float64 `json:"threshold"`
	Confusion
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Accuracy  float64 `json:"accuracy"`
}

// NewPoint computes the metrics of c at a threshold.
func NewPoint(threshold float64, c Confusion) Point {
	return Point{
		Threshold: threshold,
		Confusion: c,
		Precision: c.Precision(),
		Recall:    c.Recall(),
		F1:        c.F1(),
		Accuracy:  c.Accuracy(),
	}
}

// BestF1 returns the point with the highest F1, preferring the lower
// threshold on ties. ok is false for an empty curve.
func BestF1(points []Point) (best Point, ok bool) {
	for i, p := range points {
		if i == 0 || p.F1 > best.F1 {
			best = p
		}
	}
	return best, len(points) > 0
}
