package genotype

import (
	"math"
	"testing"

	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKmerInfoComputesResidueAndBounds(t *testing.T) {
	r := kmerrec.New(1, kmerrec.SourceAssembly)
	r.AddTrack("sv1")
	r.AddTrack("sv2")
	r.Reference = 3
	r.Count = 100
	r.Coverage = 10

	infos := buildKmerInfo([]*kmerrec.Record{r}, 0.01)
	require.Len(t, infos, 1)
	info := infos[0]
	assert.Equal(t, []string{"sv1", "sv2"}, info.tracks)
	assert.Equal(t, 1.0, info.residue) // 3 - 2 tracks
	assert.Equal(t, 70.0, info.lb)     // 100 - 10*(1+2)
	assert.Equal(t, 90.0, info.ub)     // 100 - 10*1
}

func TestRoundMapsToTrichotomy(t *testing.T) {
	assert.Equal(t, 0.0, round(0.1))
	assert.Equal(t, 0.5, round(0.5))
	assert.Equal(t, 1.0, round(0.9))
	assert.Equal(t, 0.5, round(0.25))
	assert.Equal(t, 1.0, round(0.75))
}

func TestGenotypeLabel(t *testing.T) {
	assert.Equal(t, "0/0", genotypeLabel(0.1))
	assert.Equal(t, "0/1", genotypeLabel(0.5))
	assert.Equal(t, "1/1", genotypeLabel(0.9))
}

func TestPinIndex(t *testing.T) {
	assert.Equal(t, 0, pinIndex(0))
	assert.Equal(t, 1, pinIndex(0.5))
	assert.Equal(t, 2, pinIndex(1.0))
}

func TestSumAtAndGatherAt(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	idxs := []int{1, 3}
	assert.Equal(t, 6.0, sumAt(vals, idxs))
	assert.Equal(t, []float64{2, 4}, gatherAt(vals, idxs))
}

func TestPairedTTestRequiresAtLeastTwoPairs(t *testing.T) {
	tv, pv := pairedTTest([]float64{1}, []float64{2})
	assert.Equal(t, 0.0, tv)
	assert.Equal(t, 1.0, pv)
}

func TestPairedTTestZeroVarianceReturnsNoSignal(t *testing.T) {
	// Constant diffs (even nonzero ones) carry no paired-test signal.
	tv, pv := pairedTTest([]float64{2, 2, 2}, []float64{0, 0, 0})
	assert.Equal(t, 0.0, tv)
	assert.Equal(t, 1.0, pv)
}

func TestPairedTTestDetectsConsistentDifference(t *testing.T) {
	tv, pv := pairedTTest([]float64{1, 2}, []float64{8, 10})
	assert.InDelta(t, -15.0, tv, 1e-9)
	assert.Greater(t, pv, 0.0)
	assert.Less(t, pv, 0.1)
}

// TestSolveLPAssemblesExpectedVariablesAndConstraints drives solveLP with a
// fakeSolver and inspects exactly what was recorded, independent of gonum's
// simplex implementation.
func TestSolveLPAssemblesExpectedVariablesAndConstraints(t *testing.T) {
	r := kmerrec.New(1, kmerrec.SourceAssembly)
	r.AddTrack("sv1")
	r.Reference = 1
	r.Count = 100
	r.Coverage = 10
	infos := buildKmerInfo([]*kmerrec.Record{r}, 0.01)

	var captured *fakeSolver
	g := &LpGenotyper{ErrorRate: 0.01, newSolver: func() solver {
		captured = newFakeSolver()
		captured.Values = []float64{0.5, 95, 5}
		return captured
	}}

	tracks := []track.Track{{ID: "sv1"}}
	cOut, absErr, err := g.solveLP(tracks, infos, nil)
	require.NoError(t, err)

	require.Equal(t, 3, captured.NVars)
	assert.Equal(t, [2]float64{0, 1}, captured.Bounds[0], "unpinned track var defaults to [0,1]")
	assert.Equal(t, [2]float64{90, 100}, captured.Bounds[1], "e var bounded by lb/ub from buildKmerInfo")
	assert.Equal(t, 0.0, captured.Bounds[2][0])
	assert.True(t, math.IsInf(captured.Bounds[2][1], 1))
	assert.Equal(t, map[int]float64{2: 1}, captured.Objective)

	require.Len(t, captured.Constraints, 3)
	eq := captured.Constraints[0]
	assert.Equal(t, "=", eq.Relation)
	assert.Equal(t, 100.0, eq.Rhs) // Count - Coverage*residue(0)
	assert.InDelta(t, 9.9, eq.Coeffs[0], 1e-9)
	assert.Equal(t, 1.0, eq.Coeffs[1])

	assert.Equal(t, 0.5, cOut["sv1"])
	assert.Equal(t, []float64{95}, absErr)
}

func TestSolveLPPinsTrackVarWhenRequested(t *testing.T) {
	var captured *fakeSolver
	g := &LpGenotyper{ErrorRate: 0, newSolver: func() solver {
		captured = newFakeSolver()
		captured.Values = []float64{1}
		return captured
	}}
	tracks := []track.Track{{ID: "sv1"}}
	_, _, err := g.solveLP(tracks, nil, map[string]float64{"sv1": 1.0})
	require.NoError(t, err)
	assert.Equal(t, [2]float64{1.0, 1.0}, captured.Bounds[0])
}

// TestGenotypeEndToEnd drives the full Genotype flow with a scripted
// sequence of fakeSolvers (one per internal solveLP call: the free solve
// followed by the three confidence-probe pins) so the output can be
// predicted by hand without depending on gonum's simplex.
func TestGenotypeEndToEnd(t *testing.T) {
	r1 := kmerrec.New(1, kmerrec.SourceAssembly)
	r1.AddTrack("sv1")
	r2 := kmerrec.New(2, kmerrec.SourceAssembly)
	r2.AddTrack("sv1")

	// Variable layout per solve: v0=c(sv1), v1=e0, v2=l0, v3=e1, v4=l1.
	scripted := [][]float64{
		{0.5, 0, 0, 0, 0},   // free solve: af=0.5
		{0, 10, 0, 11, 0},   // pin 0:   |e|=[10,11], sum=21
		{0.5, 1, 0, 2, 0},   // pin 0.5: |e|=[1,2],   sum=3  (this is "g")
		{1.0, 8, 0, 10, 0},  // pin 1.0: |e|=[8,10],  sum=18 (this is "m")
	}
	i := 0
	g := &LpGenotyper{ErrorRate: 0.01, newSolver: func() solver {
		s := newFakeSolver()
		s.Values = scripted[i]
		i++
		return s
	}}

	tracks := []track.Track{{ID: "sv1"}}
	results, err := g.Genotype(tracks, []*kmerrec.Record{r1, r2})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "sv1", res.TrackID)
	assert.Equal(t, 0.5, res.AlleleFraction)
	assert.Equal(t, 0.5, res.RoundedAlleleFraction)
	assert.Equal(t, "0/1", res.Genotype)
	assert.Equal(t, 2, res.NumKmers)
	assert.InDelta(t, -15.0, res.TValue, 1e-9)
	assert.Less(t, res.PValue, 0.1)
}

func TestGenotypeSkipsTracksWithNoSurvivingKmers(t *testing.T) {
	i := 0
	values := [][]float64{{0}, {0}, {0}, {0}}
	g := &LpGenotyper{ErrorRate: 0, newSolver: func() solver {
		s := newFakeSolver()
		s.Values = values[i]
		i++
		return s
	}}
	tracks := []track.Track{{ID: "sv-orphan"}}
	results, err := g.Genotype(tracks, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "a track with no surviving k-mers is a no_call, left to the pipeline stage")
}
