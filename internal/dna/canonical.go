package dna

import (
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/bio/biosimd"
)

// ReverseComplement computes the reverse complement of a DNA string.
func ReverseComplement(seq string) string {
	buf := make([]byte, len(seq))
	biosimd.ReverseComp8NoValidate(buf, gunsafe.StringToBytes(seq))
	return gunsafe.BytesToString(buf)
}

// CanonicalString returns the lexicographically smaller of seq and its
// reverse complement, for encoding Kmer values wider than MaxKmerLength
// (masks) or for strings that may contain ambiguity codes that Kmer cannot
// represent.
func CanonicalString(seq string) string {
	rc := ReverseComplement(seq)
	if rc < seq {
		return rc
	}
	return seq
}

// Canonical encodes seq (len(seq) <= MaxKmerLength, pure ACGT) to its
// canonical Kmer, or Invalid if seq contains a non-ACGT base.
func Canonical(seq string) Kmer {
	fwd := encode(seq)
	if fwd == Invalid {
		return Invalid
	}
	rc := encode(ReverseComplement(seq))
	if rc == Invalid {
		return Invalid
	}
	if fwd < rc {
		return fwd
	}
	return rc
}

// ContainsN reports whether seq has any base outside A/C/G/T (upper or
// lower case).
func ContainsN(seq string) bool {
	for i := 0; i < len(seq); i++ {
		if asciiToBits[seq[i]] == invalidBaseBits {
			return true
		}
	}
	return false
}

// IsSubsequenceEitherStrand reports whether core occurs as a substring of
// mask on either strand. Used by MaskFilter (spec §4.4) to test whether a
// locus's flanking mask is consistent with one of the interest masks seen at
// the SV of interest.
func IsSubsequenceEitherStrand(core, mask string) bool {
	if indexOf(mask, core) >= 0 {
		return true
	}
	return indexOf(mask, ReverseComplement(core)) >= 0
}

func indexOf(haystack, needle string) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

// TrimmedCore trims n bases from each end of mask, the "length-24 core with 4
// bp trimmed from each side" construction in spec §4.4 (for k=32).
func TrimmedCore(mask string, trim int) string {
	if len(mask) <= 2*trim {
		return ""
	}
	return mask[trim : len(mask)-trim]
}
