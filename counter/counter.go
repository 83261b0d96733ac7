// Package counter implements GcAdjustedCounter, the hot path of the
// pipeline (spec §4.5): a single streaming pass over the read set that
// updates count/total/coverage on every surviving KmerRecord.
package counter

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/log"
	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/reads"
)

const nShards = 256
const maskTrim = 4

type shard struct {
	mu   sync.Mutex
	byKm map[dna.Kmer]*kmerrec.Record
}

func shardOf(k dna.Kmer) int {
	return int(farm.Hash64WithSeed(nil, uint64(k)) & (nShards - 1))
}

// GcAdjustedCounter owns the sharded count table for one sample's run
// (spec §4.5, generalizing fusion/kmer_index.go's sharded kmer->genelist
// table to kmer->*KmerRecord with mutable count/total fields).
type GcAdjustedCounter struct {
	k      int
	shards [nShards]shard
	gc     *GCTable
}

// New builds a counter over records, one shard per worker (spec §5: "keep
// its per-k-mer state in a single dense hash table with no locks, one
// partitioned copy per worker, merged on reduce" -- here realized as a
// shared table partitioned by kmer hash, each shard independently locked).
func New(records []*kmerrec.Record, k int, gc *GCTable) *GcAdjustedCounter {
	c := &GcAdjustedCounter{k: k, gc: gc}
	for i := range c.shards {
		c.shards[i].byKm = map[dna.Kmer]*kmerrec.Record{}
	}
	for _, r := range records {
		s := &c.shards[shardOf(r.Seq)]
		s.byKm[r.Seq] = r
	}
	return c
}

// Scan consumes every Pair from stream exactly once, crediting count/total
// to every surviving KmerRecord (spec §4.5's "Counting contract").
func (c *GcAdjustedCounter) Scan(ctx context.Context, stream reads.Stream) error {
	defer func() {
		if err := stream.Close(ctx); err != nil {
			log.Error.Printf("counter: close stream: %v", err)
		}
	}()
	for {
		p, err := stream.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		c.countPair(p)
		if p.Aligned && p.Chrom != "" {
			c.gc.Observe(p.Chrom, p.R1Pos)
		}
	}
}

func (c *GcAdjustedCounter) countPair(p reads.Pair) {
	if p.R2 == "" {
		c.countReadFrom(p.R1, 0)
		return
	}
	overlap := overlapLen(p.R1, p.R2, c.k)
	c.countReadFrom(p.R1, 0)
	// Skip the leading `overlap` bases of R2's reverse complement: they
	// correspond to sequence already credited via R1's overlapping tail, the
	// paired-end overlap correction spec §4.5 requires (generalizes
	// fusion/stitcher.go's overlap-stitching to avoid double counting a
	// physically overlapping fragment). Counting is canonical and the mask
	// check covers both strands, so scanning the reverse complement credits
	// the same records as scanning R2 itself.
	if overlap >= len(p.R2) {
		return
	}
	c.countReadFrom(dna.ReverseComplement(p.R2), overlap)
}

// overlapLen estimates how many leading bases of the reverse complement of
// r2 physically overlap the tail of r1, using the first shared canonical
// k-mer between the two reads -- the same "find one shared kmer, then
// measure the implied overlap" idea as fusion/stitcher.go:tryStitch,
// simplified to a length estimate rather than a full stitched sequence.
func overlapLen(r1, r2 string, k int) int {
	if len(r1) < k || len(r2) < k {
		return 0
	}
	rc2 := dna.ReverseComplement(r2)
	r2Kmers := map[string]int{}
	kz := dna.NewKmerizer(k)
	kz.Reset(rc2)
	for kz.Scan() {
		off := kz.Offset()
		r2Kmers[rc2[off:off+k]] = off
	}
	kz.Reset(r1)
	for kz.Scan() {
		off := kz.Offset()
		window := r1[off : off+k]
		if r2Off, ok := r2Kmers[window]; ok {
			// r1[off:] aligns with rc2[r2Off:], so rc2 starts at r1 offset
			// off-r2Off and its first len(r1)-off+r2Off bases (at most all
			// of rc2) lie under r1.
			n := len(r1) - off + r2Off
			if n > len(rc2) {
				n = len(rc2)
			}
			return n
		}
	}
	return 0
}

// countReadFrom scans seq starting at query offset `from`, crediting every
// canonical k-mer window to its record's total (and count, if a flank
// matches a stored mask).
func (c *GcAdjustedCounter) countReadFrom(seq string, from int) {
	k := c.k
	kz := dna.NewKmerizer(k)
	kz.Reset(seq)
	for kz.Scan() {
		off := kz.Offset()
		if off < from {
			continue
		}
		canon := kz.Canonical()
		s := &c.shards[shardOf(canon)]
		s.mu.Lock()
		r, ok := s.byKm[canon]
		if !ok {
			s.mu.Unlock()
			continue
		}
		atomic.AddInt64(&r.Total, 1)
		if matchesAnyMask(seq, off, k, r) {
			atomic.AddInt64(&r.Count, 1)
		}
		s.mu.Unlock()
	}
}

// matchesAnyMask reports whether the occurrence's flanking sequence in the
// read is consistent with at least one of r's stored locus masks (spec
// §4.5: "at least one of the locus masks stored in §4.4 must be found as a
// flank of that occurrence").
func matchesAnyMask(seq string, off, k int, r *kmerrec.Record) bool {
	var left, right string
	if off-k >= 0 {
		left = seq[off-k : off]
	}
	if off+2*k <= len(seq) {
		right = seq[off+k : off+2*k]
	}
	leftCore := dna.TrimmedCore(left, maskTrim)
	rightCore := dna.TrimmedCore(right, maskTrim)
	for _, l := range r.Loci {
		if leftCore != "" && (dna.IsSubsequenceEitherStrand(leftCore, l.LeftMask) || dna.IsSubsequenceEitherStrand(leftCore, l.RightMask)) {
			return true
		}
		if rightCore != "" && (dna.IsSubsequenceEitherStrand(rightCore, l.LeftMask) || dna.IsSubsequenceEitherStrand(rightCore, l.RightMask)) {
			return true
		}
	}
	return false
}

// Finish computes each record's GC-adjusted coverage as the mean expected
// depth across its real loci (spec §4.5's "Coverage contract"), after the
// read pass completes.
func (c *GcAdjustedCounter) Finish() {
	for i := range c.shards {
		for _, r := range c.shards[i].byKm {
			loci := r.RealLoci()
			if len(loci) == 0 {
				continue
			}
			var sum float64
			for _, l := range loci {
				sum += c.gc.ExpectedDepth(l.Chrom, l.Position)
			}
			r.Coverage = sum / float64(len(loci))
		}
	}
}

// MergeSimulationShards implements the "halved count/total before merge"
// convention (spec Open Question 3): the per-shard raw count/total of two
// shards are averaged rather than summed when folding shard b into shard a.
// pipeline.Run does not call it; it reads a single FASTQ pair. This is
// preserved as a documented counting convention rather than corrected,
// per spec.md's instruction to treat it as a compatibility convention, not
// a bug.
func MergeSimulationShards(a, b *kmerrec.Record) {
	a.Count = (a.Count + b.Count) / 2
	a.Total = (a.Total + b.Total) / 2
}
