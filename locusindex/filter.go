package locusindex

import (
	"strings"

	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/track"
)

const maskCoreLen = 24
const maskTrim = 4

// FilterLoci implements spec §4.4 MaskFilter: for each record, compute the
// union of "interest masks" (masks at junction_* loci, plus masks at real
// loci inside any associated track's breakpoint window), then keep only
// real loci whose own mask is a canonical subsequence of some interest
// mask. Grounded on cmd/bio-fusion/main.go's filter-in-place-over-a-slice
// idiom (compact into the same backing array with a write cursor).
//
// k is the process k-mer length, used for the "returning k-mer" test
// (within 2k of a track's own breakpoints).
func FilterLoci(records []*kmerrec.Record, catalog map[string]track.Track, k int) []*kmerrec.Record {
	out := records[:0]
	for _, r := range records {
		if keepRecord(r, catalog, k) {
			out = append(out, r)
		}
	}
	return out
}

func keepRecord(r *kmerrec.Record, catalog map[string]track.Track, k int) bool {
	interest := interestMasks(r, catalog)

	for name, l := range r.Loci {
		if l.IsSynthetic() {
			continue
		}
		if !anySubsequence(l.LeftMask, l.RightMask, interest) {
			r.FilteredLoci[name] = l
			delete(r.Loci, name)
			continue
		}
		if isReturning(l, r, catalog, k) {
			r.FilteredLoci[name] = l
			delete(r.Loci, name)
		}
	}

	junctionLoci := r.JunctionLoci()
	if len(junctionLoci) > 0 {
		if len(r.RealLoci()) > 0 {
			for _, jl := range junctionLoci {
				if jl.LeftMask == "" || jl.RightMask == "" {
					return false // can't distinguish; drop entirely
				}
			}
		} else {
			r.Inverse = true
		}
	}

	r.Reference = len(r.RealLoci())
	return true
}

// interestMasks is the union of left/right masks at junction_* loci and at
// real loci that fall inside any of the record's associated tracks'
// breakpoint windows [begin, end).
func interestMasks(r *kmerrec.Record, catalog map[string]track.Track) []string {
	var masks []string
	for name, l := range r.Loci {
		if strings.HasPrefix(name, "junction_") {
			masks = append(masks, l.LeftMask, l.RightMask)
			continue
		}
		for tid := range r.Tracks {
			t, ok := catalog[tid]
			if !ok {
				continue
			}
			if l.Position >= t.Begin && l.Position < t.End {
				masks = append(masks, l.LeftMask, l.RightMask)
			}
		}
	}
	return masks
}

func anySubsequence(leftMask, rightMask string, interest []string) bool {
	leftCore := dna.TrimmedCore(leftMask, maskTrim)
	rightCore := dna.TrimmedCore(rightMask, maskTrim)
	for _, m := range interest {
		if m == "" {
			continue
		}
		if leftCore != "" && dna.IsSubsequenceEitherStrand(leftCore, m) {
			return true
		}
		if rightCore != "" && dna.IsSubsequenceEitherStrand(rightCore, m) {
			return true
		}
	}
	return false
}

// isReturning reports whether l lies within 2k of any of r's tracks'
// breakpoints -- the deleted allele still contains such k-mers on the new
// join, so they cannot serve as evidence (spec §4.4 rule 3).
func isReturning(l kmerrec.Locus, r *kmerrec.Record, catalog map[string]track.Track, k int) bool {
	window := int64(2 * k)
	for tid := range r.Tracks {
		t, ok := catalog[tid]
		if !ok {
			continue
		}
		if abs64(l.Position-t.Begin) <= window || abs64(l.Position-t.End) <= window {
			return true
		}
	}
	return false
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
