// Package signature implements the two extractors that seed every
// candidate SV with its starting set of k-mers: InnerKmers (sequence
// present on only one allele) and JunctionKmers (sequence spanning a
// breakpoint). Both return kmerrec.Record values the rest of the
// pipeline mutates in place.
package signature

import (
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/refidx"
	"github.com/nebulagt/svgenotype/track"
)

// Params is the subset of pipeline.Config the extractors need. Kept as its
// own small struct (rather than importing package pipeline) to avoid a
// pipeline<->signature import cycle -- package pipeline constructs one from
// its own Config.
type Params struct {
	K int
	// ReadLen is the nominal read length R used to window reads around a
	// breakpoint in JunctionKmers (spec §4.2).
	ReadLen int
	// ErrorRate is the sequencing error rate epsilon (spec §4.2, §4.6).
	ErrorRate float64
	// Depth is the approximate per-haplotype sequencing depth, used only to
	// derive JunctionKmers' support threshold max(3, depth/4).
	Depth float64
}

const (
	innerCap     = 1000
	refCountCap  = 10
	maxTrackSpan = 1_000_000
)

// InnerKmers implements spec §4.1.
func InnerKmers(t track.Track, ref *refidx.Reference, idx refidx.Index, p Params) ([]*kmerrec.Record, error) {
	if t.End-t.Begin > maxTrackSpan {
		return nil, nil
	}
	switch t.SVType {
	case track.Deletion:
		seq, err := ref.Slice(t.Chrom, t.Begin-int64(p.K)+1, t.End+int64(p.K)-1)
		if err != nil {
			return nil, err
		}
		return capAndFilter(addTrack(scanWindow(seq, p.K, kmerrec.SourceDeletion), t.ID), idx, p)
	case track.Inversion:
		seq, err := invertedAllele(t, ref, p.K)
		if err != nil {
			return nil, err
		}
		return capAndFilter(addTrack(scanWindow(seq, p.K, kmerrec.SourceDeletion), t.ID), idx, p)
	case track.Insertion, track.MobileElementInsertion:
		recs, err := innerInsertion(t, ref, p)
		if err != nil {
			return nil, err
		}
		return capAndFilter(recs, idx, p)
	}
	return nil, errors.Errorf("signature: unknown svtype %q for track %s", t.SVType, t.ID)
}

// invertedAllele builds the allele sequence for an INV track: unchanged
// left flank, the reverse complement of the inverted span, unchanged right
// flank (spec §3's INV addition, grounded on
// original_source/kmer/sv.py:Inversion.get_signature_kmers).
func invertedAllele(t track.Track, ref *refidx.Reference, k int) (string, error) {
	left, err := ref.Slice(t.Chrom, t.Begin-int64(k)+1, t.Begin)
	if err != nil {
		return "", err
	}
	mid, err := ref.Slice(t.Chrom, t.Begin, t.End)
	if err != nil {
		return "", err
	}
	right, err := ref.Slice(t.Chrom, t.End, t.End+int64(k)-1)
	if err != nil {
		return "", err
	}
	return left + dna.ReverseComplement(mid) + right, nil
}

// innerInsertion implements the INS/MEI case: splice inserted_seq between
// the two reference flanks and keep every window crossing the insertion.
func innerInsertion(t track.Track, ref *refidx.Reference, p Params) ([]*kmerrec.Record, error) {
	k := p.K
	left, err := ref.Slice(t.Chrom, t.Begin-int64(k), t.Begin)
	if err != nil {
		return nil, err
	}
	right, err := ref.Slice(t.Chrom, t.End, t.End+int64(k))
	if err != nil {
		return nil, err
	}
	allele := left + t.InsertedSeq + right
	insertBegin := len(left)
	insertEnd := len(left) + len(t.InsertedSeq)

	kz := dna.NewKmerizer(k)
	kz.Reset(allele)
	var out []*kmerrec.Record
	for kz.Scan() {
		off := kz.Offset()
		if off+k <= insertBegin || off >= insertEnd {
			continue // window doesn't touch the inserted region at all
		}
		rec := kmerrec.New(kz.Canonical(), kmerrec.SourceInsertion)
		rec.AddTrack(t.ID)
		leftMask, rightMask := flankMasks(allele, off, k)
		rec.AddLocus(kmerrec.Locus{
			Name:      t.InsideLocusName(),
			LeftMask:  leftMask,
			RightMask: rightMask,
		})
		out = append(out, rec)
	}
	return out, nil
}

// flankMasks returns the k bases immediately left and right of the window
// [off, off+k) within seq, empty if out of bounds.
func flankMasks(seq string, off, k int) (left, right string) {
	if off-k >= 0 {
		left = seq[off-k : off]
	}
	if off+k+k <= len(seq) {
		right = seq[off+k : off+k+k]
	}
	return left, right
}

// scanWindow emits one unlocated Record per canonical k-mer in seq.
// DEL/INV loci are populated later by package locusindex; only the
// synthetic loci INS attaches at extraction time are set here.
func scanWindow(seq string, k int, source kmerrec.Source) []*kmerrec.Record {
	kz := dna.NewKmerizer(k)
	kz.Reset(seq)
	var out []*kmerrec.Record
	for kz.Scan() {
		out = append(out, kmerrec.New(kz.Canonical(), source))
	}
	return out
}

// addTrack associates every record with trackID -- every extraction path
// must do this so later stages can group a track's surviving k-mers
// (locusindex.FilterLoci, genotype.Genotype, pipeline's no_call bookkeeping
// all key off Record.Tracks).
func addTrack(recs []*kmerrec.Record, trackID string) []*kmerrec.Record {
	for _, r := range recs {
		r.AddTrack(trackID)
	}
	return recs
}

// capAndFilter applies spec §4.1's cap: dedup by canonical k-mer, keep at
// most innerCap records (lowest reference count, ties by canonical lex
// order), then drop any whose reference count still exceeds refCountCap.
func capAndFilter(recs []*kmerrec.Record, idx refidx.Index, p Params) ([]*kmerrec.Record, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	byKmer := map[dna.Kmer]*kmerrec.Record{}
	for _, r := range recs {
		if existing, ok := byKmer[r.Seq]; ok {
			for _, l := range r.Loci {
				existing.AddLocus(l)
			}
			for tid := range r.Tracks {
				existing.AddTrack(tid)
			}
			continue
		}
		r.Reference = idx.Count(r.Seq)
		byKmer[r.Seq] = r
	}
	uniq := make([]*kmerrec.Record, 0, len(byKmer))
	for _, r := range byKmer {
		uniq = append(uniq, r)
	}
	sort.Slice(uniq, func(i, j int) bool {
		if uniq[i].Reference != uniq[j].Reference {
			return uniq[i].Reference < uniq[j].Reference
		}
		return uniq[i].Seq < uniq[j].Seq
	})
	if len(uniq) > innerCap {
		uniq = uniq[:innerCap]
	}
	out := uniq[:0]
	for _, r := range uniq {
		if r.Reference <= refCountCap {
			out = append(out, r)
		}
	}
	return out, nil
}
