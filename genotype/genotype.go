// Package genotype implements LpGenotyper (spec §4.6): it turns per-k-mer
// counts and reference-copy metadata into a continuous LP, rounds the
// solution to a diploid genotype per track, and runs a paired-test
// confidence probe.
package genotype

import (
	"math"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/track"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Result is one track's genotyping outcome, spec §6's confidence.bed row.
type Result struct {
	TrackID              string
	AlleleFraction       float64
	RoundedAlleleFraction float64
	Genotype             string // "0/0", "0/1", "1/1"
	TValue, PValue       float64
	NumKmers             int
}

// LpGenotyper holds the settings shared by one genotyping run: the
// sequencing error rate and the factory for its LP solver. Tracks and
// records are passed to Genotype.
type LpGenotyper struct {
	ErrorRate float64
	newSolver func() solver
}

// New constructs an LpGenotyper backed by the production gonum solver.
func New(errorRate float64) *LpGenotyper {
	return &LpGenotyper{ErrorRate: errorRate, newSolver: func() solver { return newGonumSolver() }}
}

// kmerInfo is the per-kmer data the LP needs, precomputed once per run.
type kmerInfo struct {
	rec      *kmerrec.Record
	tracks   []string
	residue  float64
	lb, ub   float64
}

func buildKmerInfo(records []*kmerrec.Record, errorRate float64) []kmerInfo {
	infos := make([]kmerInfo, 0, len(records))
	for _, r := range records {
		var tracks []string
		for tid := range r.Tracks {
			tracks = append(tracks, tid)
		}
		sort.Strings(tracks)
		// Multiplicity m_{i,t} is 1 for every track a k-mer is associated
		// with: signature extraction (package signature) never emits more
		// than one Record per canonical k-mer per track, so there is no
		// per-track multiplicity to track beyond presence in r.Tracks.
		residue := float64(r.Reference) - float64(len(tracks))
		lb := float64(r.Count) - r.Coverage*(residue+float64(len(tracks)))
		ub := float64(r.Count) - r.Coverage*residue
		infos = append(infos, kmerInfo{rec: r, tracks: tracks, residue: residue, lb: lb, ub: ub})
	}
	return infos
}

// solveLP builds and solves the LP of spec §4.6 for the given track
// allele-fraction pins (trackID -> fixed c_t, or unset for free-in-[0,1]),
// returning the solved c_t per track and, for every kmer, |e_i|.
func (g *LpGenotyper) solveLP(tracks []track.Track, infos []kmerInfo, pinned map[string]float64) (map[string]float64, []float64, error) {
	s := g.newSolver()

	trackVar := map[string]int{}
	for _, t := range tracks {
		v := s.addVariables(1)[0]
		if fixed, ok := pinned[t.ID]; ok {
			s.setBounds(v, fixed, fixed)
		} else {
			s.setBounds(v, 0, 1)
		}
		trackVar[t.ID] = v
	}

	eVar := make([]int, len(infos))
	lVar := make([]int, len(infos))
	objective := map[int]float64{}
	for i, info := range infos {
		eVar[i] = s.addVariables(1)[0]
		s.setBounds(eVar[i], info.lb, info.ub)
		lVar[i] = s.addVariables(1)[0]
		s.setBounds(lVar[i], 0, math.Inf(1))
		objective[lVar[i]] = 1

		coeffs := map[int]float64{eVar[i]: 1}
		for _, tid := range info.tracks {
			coeffs[trackVar[tid]] += info.rec.Coverage * (1 - g.ErrorRate)
		}
		rhs := float64(info.rec.Count) - info.rec.Coverage*info.residue
		s.addConstraint(coeffs, "=", rhs)

		s.addConstraint(map[int]float64{lVar[i]: 1, eVar[i]: 1}, ">=", 0)
		s.addConstraint(map[int]float64{lVar[i]: 1, eVar[i]: -1}, ">=", 0)
	}

	if err := s.minimize(objective); err != nil {
		return nil, nil, err
	}
	values := s.getValues()

	cOut := map[string]float64{}
	for tid, v := range trackVar {
		cOut[tid] = values[v]
	}
	absErr := make([]float64, len(infos))
	for i := range infos {
		absErr[i] = math.Abs(values[eVar[i]])
	}
	return cOut, absErr, nil
}

// round maps a continuous allele fraction to {0, 0.5, 1} (spec §4.6
// "Rounding").
func round(c float64) float64 {
	return math.Round(2*c) / 2
}

func genotypeLabel(c float64) string {
	switch round(c) {
	case 0:
		return "0/0"
	case 0.5:
		return "0/1"
	default:
		return "1/1"
	}
}

// Genotype implements spec §4.6 end to end: solve the joint LP once for the
// continuous allele fractions, then run the paired-test confidence probe
// per track.
func (g *LpGenotyper) Genotype(tracks []track.Track, records []*kmerrec.Record) ([]Result, error) {
	infos := buildKmerInfo(records, g.ErrorRate)

	cFree, _, err := g.solveLP(tracks, infos, nil)
	if err != nil {
		return nil, errors.E(err, "genotype: main LP solve failed")
	}

	// One confidence-probe solve per pin value, shared across all tracks:
	// each solve fixes every track's c_t at the same pin simultaneously,
	// matching original_source/kmer/programming.py's
	// GenotypingConfidenceJob, which re-solves the whole joint LP per pin
	// rather than one track at a time.
	pins := []float64{0, 0.5, 1.0}
	absErrByPin := make([][]float64, len(pins))
	for i, pin := range pins {
		pinned := map[string]float64{}
		for _, t := range tracks {
			pinned[t.ID] = pin
		}
		_, absErr, err := g.solveLP(tracks, infos, pinned)
		if err != nil {
			return nil, errors.E(err, "genotype: confidence probe solve failed", pin)
		}
		absErrByPin[i] = absErr
	}

	trackKmerIdx := map[string][]int{}
	for i, info := range infos {
		for _, tid := range info.tracks {
			trackKmerIdx[tid] = append(trackKmerIdx[tid], i)
		}
	}

	var out []Result
	for _, t := range tracks {
		idxs := trackKmerIdx[t.ID]
		if len(idxs) == 0 {
			continue // no_call: handled by the pipeline stage, not here
		}
		af := cFree[t.ID]
		g0 := round(af)
		gi := pinIndex(g0)

		// m is the best alternative: among the two pins != g0, whichever
		// has the lower total |e_i| over this track's k-mers.
		mi := -1
		var mSum float64
		for i, pin := range pins {
			if i == gi {
				continue
			}
			sum := sumAt(absErrByPin[i], idxs)
			if mi == -1 || sum < mSum {
				mi, mSum = i, sum
			}
			_ = pin
		}

		gErrs := gatherAt(absErrByPin[gi], idxs)
		mErrs := gatherAt(absErrByPin[mi], idxs)
		tValue, pValue := pairedTTest(gErrs, mErrs)

		out = append(out, Result{
			TrackID:               t.ID,
			AlleleFraction:        af,
			RoundedAlleleFraction: g0,
			Genotype:              genotypeLabel(g0),
			TValue:                tValue,
			PValue:                pValue,
			NumKmers:              len(idxs),
		})
	}
	return out, nil
}

func pinIndex(g float64) int {
	switch g {
	case 0:
		return 0
	case 0.5:
		return 1
	default:
		return 2
	}
}

func sumAt(vals []float64, idxs []int) float64 {
	var s float64
	for _, i := range idxs {
		s += vals[i]
	}
	return s
}

func gatherAt(vals []float64, idxs []int) []float64 {
	out := make([]float64, len(idxs))
	for i, idx := range idxs {
		out[i] = vals[idx]
	}
	return out
}

// pairedTTest computes a two-sided paired t-test between a and b (same
// length, element i of each paired), the Go analogue of
// scipy.stats.ttest_rel, which original_source/kmer/programming.py calls
// directly (spec §4.6 "Confidence probe").
func pairedTTest(a, b []float64) (tValue, pValue float64) {
	n := len(a)
	if n < 2 {
		return 0, 1
	}
	diffs := make([]float64, n)
	for i := range a {
		diffs[i] = a[i] - b[i]
	}
	mean, variance := stat.MeanVariance(diffs, nil)
	if variance == 0 {
		return 0, 1
	}
	se := math.Sqrt(variance / float64(n))
	tValue = mean / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	pValue = 2 * (1 - dist.CDF(math.Abs(tValue)))
	return tValue, pValue
}
