package dna

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReverseComplement(t *testing.T) {
	tests := []struct {
		seq, expected string
	}{
		{"ACGT", "ACGT"},
		{"AACCGGTT", "AACCGGTT"},
		{"GATTACA", "TGTAATC"},
		{"", ""},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, ReverseComplement(test.seq))
	}
}

func TestCanonicalStringPicksLexicallySmaller(t *testing.T) {
	fwd := "TTTT"
	rc := ReverseComplement(fwd)
	got := CanonicalString(fwd)
	assert.True(t, got == fwd || got == rc)
	assert.True(t, got <= fwd && got <= rc)
}

func TestCanonicalAgreesOnBothStrands(t *testing.T) {
	seq := "ACGTACGTAC"
	rc := ReverseComplement(seq)
	assert.Equal(t, Canonical(seq), Canonical(rc))
}

func TestCanonicalRejectsAmbiguousBases(t *testing.T) {
	assert.Equal(t, Invalid, Canonical("ACGTN"))
}

func TestContainsN(t *testing.T) {
	assert.False(t, ContainsN("ACGT"))
	assert.True(t, ContainsN("ACGN"))
	assert.True(t, ContainsN("acgn"))
}

func TestIsSubsequenceEitherStrand(t *testing.T) {
	mask := "AAACCCGGGTTT"
	assert.True(t, IsSubsequenceEitherStrand("CCCGGG", mask))
	// "GGGGTT" does not occur in "AACCCCAA", but its reverse complement
	// "AACCCC" does.
	assert.True(t, IsSubsequenceEitherStrand("GGGGTT", "AACCCCAA"))
	assert.False(t, IsSubsequenceEitherStrand("TTTTTT", mask))
}

func TestTrimmedCore(t *testing.T) {
	assert.Equal(t, "CCGG", TrimmedCore("AACCGGTT", 2))
	assert.Equal(t, "", TrimmedCore("AACC", 2))
}

func TestKmerizerSkipsAmbiguousWindows(t *testing.T) {
	kz := NewKmerizer(4)
	kz.Reset("ACGTNACGT")

	var offsets []int
	for kz.Scan() {
		offsets = append(offsets, kz.Offset())
	}
	// the N is at index 4: windows [1,5) through [4,8) touch it; [0,4) and
	// [5,9) survive.
	assert.Equal(t, []int{0, 5}, offsets)
}

func TestKmerizerCanonicalMatchesCanonical(t *testing.T) {
	seq := "ACGTACGTACGT"
	k := 4
	kz := NewKmerizer(k)
	kz.Reset(seq)
	for kz.Scan() {
		window := seq[kz.Offset() : kz.Offset()+k]
		assert.Equal(t, Canonical(window), kz.Canonical())
	}
}

func TestKmerizerNoWindowsOnShortSequence(t *testing.T) {
	kz := NewKmerizer(8)
	kz.Reset("ACG")
	assert.False(t, kz.Scan())
}
