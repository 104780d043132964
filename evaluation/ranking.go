package evaluation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Masked marks a distance that must never rank ahead of a real candidate.
const Masked = math.MaxFloat32

// Histogram bin edges over ranks. Bins are half-open except the last.
var binEdges = []float64{0, 1.1, 10.1, 100.1, 1e7}

// Metrics aggregates the ranks of one evaluation mode.
type Metrics struct {
	MeanRank float64
	Hits1    int
	Hits10   int
	Hits100  int
	AUC      float64
	Ranks    []float64
}

// Tuple returns (mean rank, rank@1, rank@10, rank@100).
func (m Metrics) Tuple() (float64, int, int, int) {
	return m.MeanRank, m.Hits1, m.Hits10, m.Hits100
}

// Hits returns the cumulative counts keyed by threshold.
func (m Metrics) Hits() map[int]int {
	return map[int]int{1: m.Hits1, 10: m.Hits10, 100: m.Hits100}
}

func aggregate(ranks, aucs []float64) Metrics {
	m := Metrics{Ranks: ranks}
	if len(ranks) == 0 {
		return m
	}
	m.MeanRank = floats.Sum(ranks) / float64(len(ranks))
	m.AUC = floats.Sum(aucs) / float64(len(aucs))

	hist := histogram(ranks)
	m.Hits1 = hist[0]
	m.Hits10 = hist[0] + hist[1]
	m.Hits100 = hist[0] + hist[1] + hist[2]
	return m
}

func histogram(ranks []float64) []int {
	counts := make([]int, len(binEdges)-1)
	last := len(counts) - 1
	for _, r := range ranks {
		for b := 0; b < len(counts); b++ {
			lo, hi := binEdges[b], binEdges[b+1]
			if r >= lo && (r < hi || (b == last && r == hi)) {
				counts[b]++
				break
			}
		}
	}
	return counts
}

// RankOf returns the average-tie rank of distances[target] among all
// entries, ascending, and the number of unmasked entries.
func RankOf(distances []float64, target int) (rank float64, candidates int) {
	d := distances[target]
	var less, equal int
	for _, v := range distances {
		switch {
		case v < d:
			less++
		case v == d:
			equal++
		}
		if v < Masked {
			candidates++
		}
	}
	return float64(less) + float64(equal+1)/2, candidates
}

// AUC maps a rank among n candidates to [0, 1], 1 being the best rank.
func AUC(rank float64, n int) float64 {
	if n <= 1 {
		return 1
	}
	return 1 - (rank-1)/float64(n-1)
}

// unitRows returns a copy of x with every row scaled to unit length. Zero
// rows stay zero, giving them distance 1 to everything.
func unitRows(x *mat.Dense) *mat.Dense {
	out := mat.DenseCopyOf(x)
	r, _ := out.Dims()
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
	}
	return out
}

// cosineRow returns the cosine distance from row head of the unit matrix
// to every row.
func cosineRow(unit *mat.Dense, head int) []float64 {
	r, _ := unit.Dims()
	sims := mat.NewVecDense(r, nil)
	sims.MulVec(unit, unit.RowView(head))

	out := make([]float64, r)
	for i := range out {
		out[i] = 1 - sims.AtVec(i)
	}
	return out
}
