package signature

import (
	"github.com/biogo/hts/sam"
	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/reads"
	"github.com/nebulagt/svgenotype/refidx"
	"github.com/nebulagt/svgenotype/track"
)

const clipVerifyMaxEdits = 3

// span is a half-open range of query offsets within a read's sequence,
// classified by what it represents in the CIGAR.
type span struct {
	begin, end int
	isClip     bool
	leftClip   bool // only meaningful when isClip
}

// classifySpans walks a's CIGAR and returns every soft-clip span and every
// insertion/deletion span whose length falls within 0.9x-1.1x of svlen
// (spec §4.2 "classify offsets").
func classifySpans(a reads.AlignedRead, svlen int64) []span {
	lo := int(float64(svlen) * 0.9)
	hi := int(float64(svlen) * 1.1)
	if hi < lo {
		lo, hi = hi, lo
	}
	var spans []span
	qoff := 0
	for i, op := range a.Cigar {
		switch op.Type {
		case sam.CigarSoftClipped:
			spans = append(spans, span{begin: qoff, end: qoff + op.Len, isClip: true, leftClip: i == 0})
			qoff += op.Len
		case sam.CigarInsertion:
			if op.Len >= lo && op.Len <= hi {
				spans = append(spans, span{begin: qoff, end: qoff + op.Len})
			}
			qoff += op.Len
		case sam.CigarDeletion:
			if op.Len >= lo && op.Len <= hi {
				spans = append(spans, span{begin: qoff, end: qoff}) // zero query width; flagged by position only
			}
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			qoff += op.Len
		}
	}
	return spans
}

// verifyClip re-aligns a's clipped bases against the reference at the
// position implied by the unclipped alignment (spec §4.2 "Clip
// verification"). It reports true if the clip is reference sequence in
// disguise -- i.e. the junction candidate should be discarded.
func verifyClip(a reads.AlignedRead, sp span, ref *refidx.Reference) bool {
	clipped := a.Seq[sp.begin:sp.end]
	if clipped == "" {
		return false
	}
	var ctx string
	var err error
	if sp.leftClip {
		ctx, err = ref.Slice(a.Chrom, a.Pos-int64(len(clipped)), a.Pos)
	} else {
		ctx, err = ref.Slice(a.Chrom, a.MappedEnd, a.MappedEnd+int64(len(clipped)))
	}
	if err != nil || ctx == "" {
		return false
	}
	return bandedEditDistance(clipped, ctx, clipVerifyMaxEdits) <= clipVerifyMaxEdits
}

// bandedEditDistance computes the Levenshtein distance between a and b,
// capped at band+1 (returns band+1 if the true distance exceeds band) --
// the re-alignment clip verification needs only a small-edit-count check,
// not the exact distance for large inputs.
func bandedEditDistance(a, b string, band int) int {
	n, m := len(a), len(b)
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}
	for i := 1; i <= n; i++ {
		cur[0] = i
		lo, hi := i-band, i+band
		if lo < 0 {
			lo = 0
		}
		if hi > m {
			hi = m
		}
		for j := 1; j <= m; j++ {
			if j < lo || j > hi {
				cur[j] = band + 1
				continue
			}
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if sub < best {
				best = sub
			}
			cur[j] = best
		}
		prev, cur = cur, prev
	}
	if prev[m] > band+1 {
		return band + 1
	}
	return prev[m]
}

// candidateWindows returns the BAM regions JunctionKmers must pull reads
// from (spec §4.2: DEL/INV pull around both breakpoints, INS/MEI only the
// single insertion site).
func candidateWindows(t track.Track, readLen int) [][2]int64 {
	R := int64(readLen)
	switch t.SVType {
	case track.Deletion, track.Inversion:
		return [][2]int64{{t.Begin - R, t.Begin + R}, {t.End - R, t.End + R}}
	default:
		return [][2]int64{{t.Begin - R, t.Begin + R}}
	}
}

// JunctionKmers implements spec §4.2.
func JunctionKmers(t track.Track, store reads.AlignedStore, ref *refidx.Reference, p Params) ([]*kmerrec.Record, error) {
	k := p.K

	type support struct {
		rec       *kmerrec.Record
		leftMask  string
		rightMask string
		reads     map[string]bool
	}
	byKmer := map[dna.Kmer]*support{}

	seen := map[string]bool{} // read names already scanned, across overlapping windows
	for _, w := range candidateWindows(t, p.ReadLen) {
		for _, a := range store.Overlapping(t.Chrom, w[0], w[1]) {
			if seen[a.Name] {
				continue
			}
			seen[a.Name] = true
			if !a.HasStructuralEvidence(t.SVLen) {
				continue
			}
			for _, sp := range classifySpans(a, t.SVLen) {
				if sp.isClip && verifyClip(a, sp, ref) {
					continue // reference sequence in disguise, not a junction
				}
				scanSpanWindows(a, sp, k, func(off int) {
					window := a.Seq[off : off+k]
					if dna.ContainsN(window) {
						return
					}
					canon := dna.Canonical(window)
					s, ok := byKmer[canon]
					if !ok {
						src := kmerrec.SourceJunction
						switch t.SVType {
						case track.Deletion, track.Inversion:
							src = kmerrec.SourceDeletion
						case track.Insertion, track.MobileElementInsertion:
							src = kmerrec.SourceInsertion
						}
						s = &support{rec: kmerrec.New(canon, src), reads: map[string]bool{}}
						if off-k >= 0 {
							s.leftMask = a.Seq[off-k : off]
						}
						if off+2*k <= len(a.Seq) {
							s.rightMask = a.Seq[off+k : off+2*k]
						}
						byKmer[canon] = s
					}
					s.reads[a.Name] = true
				})
			}
		}
	}

	threshold := int(p.Depth / 4)
	if threshold < 3 {
		threshold = 3
	}
	var out []*kmerrec.Record
	for _, s := range byKmer {
		if len(s.reads) < threshold {
			continue
		}
		s.rec.AddTrack(t.ID)
		s.rec.AddLocus(kmerrec.Locus{
			Name:      t.JunctionLocusName(),
			LeftMask:  s.leftMask,
			RightMask: s.rightMask,
		})
		out = append(out, s.rec)
	}
	return out, nil
}

// scanSpanWindows invokes fn with every k-mer window offset overlapping sp
// by at least 10 bases (spec §4.2). A zero-width span (a reference
// deletion, which consumes no query bases) has no query overlap to
// measure; instead a window qualifies by straddling the junction point
// with at least 10 bases of query sequence on each side.
func scanSpanWindows(a reads.AlignedRead, sp span, k int, fn func(off int)) {
	const minOverlap = 10
	zeroWidth := sp.begin == sp.end
	lo := sp.begin - k + minOverlap
	hi := sp.end - minOverlap
	if lo < 0 {
		lo = 0
	}
	if hi > len(a.Seq)-k {
		hi = len(a.Seq) - k
	}
	for off := lo; off <= hi; off++ {
		if zeroWidth {
			fn(off)
			continue
		}
		if overlapLen(off, off+k, sp.begin, sp.end) >= minOverlap {
			fn(off)
		}
	}
}

func overlapLen(aBegin, aEnd, bBegin, bEnd int) int {
	lo := aBegin
	if bBegin > lo {
		lo = bBegin
	}
	hi := aEnd
	if bEnd < hi {
		hi = bEnd
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}
