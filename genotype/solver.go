package genotype

import (
	"math"

	"github.com/grailbio/base/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// solver is the opaque LP collaborator spec.md §9 calls out: "add_variables,
// add_constraint, minimize, get_values, set_bounds". LpGenotyper is built
// entirely against this interface so the rest of the package never imports
// gonum/optimize directly -- the Go analogue of
// original_source/kmer/programming.py wrapping cplex.Cplex() behind
// generate_linear_program/solve.
type solver interface {
	// addVariables reserves n new variables, initially bounded [0, +Inf),
	// and returns their indices.
	addVariables(n int) []int
	// setBounds constrains variable v to [lo, hi]; hi may be math.Inf(1)
	// and lo may be math.Inf(-1).
	setBounds(v int, lo, hi float64)
	// addConstraint adds sum(coeffs[v]*x[v]) <relation> rhs, where relation
	// is one of "=", "<=", ">=".
	addConstraint(coeffs map[int]float64, relation string, rhs float64)
	// minimize sets the objective to minimize sum(coeffs[v]*x[v]) and
	// solves the accumulated program.
	minimize(coeffs map[int]float64) error
	// getValues returns the solved value of every variable added so far.
	getValues() []float64
}

type eqConstraint struct {
	coeffs map[int]float64
	rhs    float64
}

type ineqConstraint struct {
	coeffs   map[int]float64
	relation string
	rhs      float64
}

// gonumSolver is the production solver: it accumulates variables and
// constraints abstractly, then at minimize() time assembles gonum's dense
// equality-standard-form tableau (x >= 0 only) via variable splitting for
// general bounds and slack/surplus variables for inequalities, and calls
// gonum.org/v1/gonum/optimize/convex/lp.Simplex.
type gonumSolver struct {
	nVars    int
	lo, hi   []float64
	eqs      []eqConstraint
	ineqs    []ineqConstraint
	solution []float64
}

func newGonumSolver() *gonumSolver {
	return &gonumSolver{}
}

func (s *gonumSolver) addVariables(n int) []int {
	idx := make([]int, n)
	for i := 0; i < n; i++ {
		idx[i] = s.nVars
		s.lo = append(s.lo, 0)
		s.hi = append(s.hi, math.Inf(1))
		s.nVars++
	}
	return idx
}

func (s *gonumSolver) setBounds(v int, lo, hi float64) {
	s.lo[v] = lo
	s.hi[v] = hi
}

func (s *gonumSolver) addConstraint(coeffs map[int]float64, relation string, rhs float64) {
	switch relation {
	case "=":
		s.eqs = append(s.eqs, eqConstraint{coeffs: coeffs, rhs: rhs})
	case "<=", ">=":
		s.ineqs = append(s.ineqs, ineqConstraint{coeffs: coeffs, relation: relation, rhs: rhs})
	default:
		panic("genotype: unknown constraint relation " + relation)
	}
}

// minimize shifts every variable to a non-negative "y = x - lo" form (lo
// must be finite; unbounded-below variables are split into a difference of
// two non-negative parts), turns every finite upper bound into its own
// "x[v] <= hi" row (variable pinning via setBounds(v, fixed, fixed) is just
// the lo==hi case of this), converts every inequality -- user-supplied or
// bound-derived -- to an equality with a non-negative slack/surplus
// variable, and solves the resulting standard form with gonum's dense
// simplex.
func (s *gonumSolver) minimize(coeffs map[int]float64) error {
	n := s.nVars
	// split[v] is the index of the negative part for variables with
	// lo == -Inf; -1 if the variable needs no split.
	split := make([]int, n)
	shift := make([]float64, n)
	totalCols := n
	for v := 0; v < n; v++ {
		split[v] = -1
		if math.IsInf(s.lo[v], -1) {
			split[v] = totalCols
			totalCols++
		} else {
			shift[v] = s.lo[v]
		}
	}

	// Every finite hi[v] becomes an extra "<=" row; coeffs here are in
	// terms of the original variable v, so fillRow below applies the same
	// lo-shift/split substitution it applies to every other constraint.
	var upperRows []ineqConstraint
	for v := 0; v < n; v++ {
		if math.IsInf(s.hi[v], 1) {
			continue
		}
		upperRows = append(upperRows, ineqConstraint{coeffs: map[int]float64{v: 1}, relation: "<=", rhs: s.hi[v]})
	}
	allIneqs := make([]ineqConstraint, 0, len(s.ineqs)+len(upperRows))
	allIneqs = append(allIneqs, s.ineqs...)
	allIneqs = append(allIneqs, upperRows...)

	slackCols := len(allIneqs)
	totalCols += slackCols

	rows := len(s.eqs) + len(allIneqs)
	a := mat.NewDense(rows, totalCols, nil)
	b := make([]float64, rows)
	c := make([]float64, totalCols)
	for v, w := range coeffs {
		c[v] += w
		if split[v] >= 0 {
			c[split[v]] -= w
		}
	}

	row := 0
	fillRow := func(coeffsMap map[int]float64, rhs float64) float64 {
		adj := rhs
		for v, w := range coeffsMap {
			a.Set(row, v, a.At(row, v)+w)
			if split[v] >= 0 {
				a.Set(row, split[v], a.At(row, split[v])-w)
			} else {
				adj -= w * shift[v]
			}
		}
		return adj
	}
	for _, e := range s.eqs {
		b[row] = fillRow(e.coeffs, e.rhs)
		row++
	}
	for i, ineq := range allIneqs {
		adj := fillRow(ineq.coeffs, ineq.rhs)
		sc := totalCols - slackCols + i
		switch ineq.relation {
		case "<=":
			a.Set(row, sc, 1)
		case ">=":
			a.Set(row, sc, -1)
		}
		b[row] = adj
		row++
	}

	_, x, err := lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return errors.E(err, "genotype: LP solver failed")
	}
	sol := make([]float64, n)
	for v := 0; v < n; v++ {
		val := x[v] + shift[v]
		if split[v] >= 0 {
			val -= x[split[v]]
		}
		sol[v] = val
	}
	s.solution = sol
	return nil
}

func (s *gonumSolver) getValues() []float64 { return s.solution }

// fakeSolver is the in-memory stand-in spec.md §9 calls for: it records
// every call without doing any numeric solving, so tests of LP-construction
// logic (which variables, which constraints) don't depend on gonum's
// simplex implementation. Tests set Values directly to drive getValues.
type fakeSolver struct {
	NVars       int
	Bounds      map[int][2]float64
	Constraints []ineqOrEq
	Objective   map[int]float64
	Values      []float64
}

type ineqOrEq struct {
	Coeffs   map[int]float64
	Relation string
	Rhs      float64
}

func newFakeSolver() *fakeSolver {
	return &fakeSolver{Bounds: map[int][2]float64{}}
}

func (s *fakeSolver) addVariables(n int) []int {
	idx := make([]int, n)
	for i := 0; i < n; i++ {
		idx[i] = s.NVars
		s.NVars++
	}
	return idx
}

func (s *fakeSolver) setBounds(v int, lo, hi float64) { s.Bounds[v] = [2]float64{lo, hi} }

func (s *fakeSolver) addConstraint(coeffs map[int]float64, relation string, rhs float64) {
	s.Constraints = append(s.Constraints, ineqOrEq{Coeffs: coeffs, Relation: relation, Rhs: rhs})
}

func (s *fakeSolver) minimize(coeffs map[int]float64) error {
	s.Objective = coeffs
	return nil
}

func (s *fakeSolver) getValues() []float64 { return s.Values }
