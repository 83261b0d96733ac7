// Package locusindex implements the two stages that turn a bare set of
// candidate k-mers into k-mers annotated with real genomic loci
// (LocusScorer) and then pruned to the loci that actually distinguish an
// SV's alleles (MaskFilter).
package locusindex

import (
	"fmt"
	"runtime"
	"sync"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/refidx"
)

const nShards = 256

type shard struct {
	mu   sync.Mutex
	byKm map[dna.Kmer]*kmerrec.Record
}

// shardOf matches fusion/kmer_index.go:hashKmer -- the kmer is hashed as
// the farmhash seed over an empty byte string, so every sharded table in
// the pipeline (refidx, locusindex, counter) shards identically for the
// same kmer.
func shardOf(k dna.Kmer) int {
	return int(farm.Hash64WithSeed(nil, uint64(k)) & (nShards - 1))
}

// Score implements spec §4.3 LocusScorer: one streaming pass per
// chromosome (run in parallel, bounded to NumCPU workers), looking up
// every window's canonical form in the candidate set. Grounded on
// fusion/gene_db.go:ReadTranscriptome's parallel registration fan-out,
// generalized from "kmer -> []GeneID" to "kmer -> *KmerRecord".
func Score(records []*kmerrec.Record, ref *refidx.Reference, k int) error {
	shards := [nShards]shard{}
	for _, r := range records {
		s := &shards[shardOf(r.Seq)]
		if s.byKm == nil {
			s.byKm = map[dna.Kmer]*kmerrec.Record{}
		}
		s.byKm[r.Seq] = r
	}

	chroms := ref.SeqNames()
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, chrom := range chroms {
		sem <- struct{}{}
		wg.Add(1)
		go func(chrom string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := scoreChromosome(chrom, ref, k, &shards); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(chrom)
	}
	wg.Wait()
	if firstErr != nil {
		// A missing/unreadable chromosome shard aborts the whole stage:
		// partial scores would bias every genotype (spec §4.3).
		return errors.E(firstErr, "locusindex: chromosome scan failed")
	}

	for _, r := range records {
		r.Reference = len(r.RealLoci())
	}
	return nil
}

func scoreChromosome(chrom string, ref *refidx.Reference, k int, shards *[nShards]shard) error {
	seq, err := ref.Full(chrom)
	if err != nil {
		log.Error.Printf("locusindex: %s: %v", chrom, err)
		return err
	}
	kz := dna.NewKmerizer(k)
	kz.Reset(seq)
	for kz.Scan() {
		canon := kz.Canonical()
		s := &shards[shardOf(canon)]
		s.mu.Lock()
		rec, ok := s.byKm[canon]
		if ok {
			off := kz.Offset()
			rec.AddLocus(kmerrec.Locus{
				Name:      fmt.Sprintf("%s_%d", chrom, off),
				Chrom:     chrom,
				Position:  int64(off),
				LeftMask:  flank(seq, off-k, off),
				RightMask: flank(seq, off+k, off+2*k),
			})
		}
		s.mu.Unlock()
	}
	return nil
}

func flank(seq string, begin, end int) string {
	if begin < 0 || end > len(seq) {
		return ""
	}
	return seq[begin:end]
}
