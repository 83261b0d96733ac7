package refidx

import (
	"runtime"
	"sync"

	farm "github.com/dgryski/go-farm"
	"github.com/nebulagt/svgenotype/internal/dna"
)

// Index answers "how many times does this canonical k-mer occur in the
// reference genome" (spec §1 item (a), §6 "Reference k-mer index"). In
// production this is normally backed by an external jellyfish/khmer-style
// binary index (original_source/kmer/count_server.py talks to one over a
// socket); MemIndex below is a real, self-contained implementation usable
// directly from a loaded Reference, so the pipeline runs end to end without
// any external process.
type Index interface {
	// Count returns the number of times kmer occurs in the reference,
	// counting both strands as one canonical occurrence.
	Count(kmer dna.Kmer) int
}

// nCountShards shards the in-memory count table the same way
// fusion/kmer_index.go shards its kmer->gene map: by the low bits of a
// farmhash of the kmer. Each shard has its own mutex, so the per-chromosome
// build workers contend only when they update the same shard.
const nCountShards = 256

type countShard struct {
	mu     sync.Mutex
	counts map[dna.Kmer]int32
}

// MemIndex is an in-memory reference k-mer index built by a single
// streaming pass over a set of chromosomes.
type MemIndex struct {
	k      int
	shards [nCountShards]countShard
}

// hashKmer matches fusion/kmer_index.go:hashKmer -- the kmer is hashed as
// the farmhash seed over an empty byte string, not as hashed bytes, so
// every sharded table in the pipeline (this one, locusindex, counter)
// shards identically for the same kmer.
func hashKmer(k dna.Kmer) uint64 {
	return farm.Hash64WithSeed(nil, uint64(k))
}

func shardFor(k dna.Kmer) int {
	return int(hashKmer(k) & (nCountShards - 1))
}

// BuildMemIndex counts every canonical k-mer of length k across all
// chromosomes in ref, one goroutine per chromosome (spec §5: "chromosomes"
// is the static partition for this kind of whole-reference scan).
func BuildMemIndex(ref *Reference, k int) (*MemIndex, error) {
	idx := &MemIndex{k: k}
	for i := range idx.shards {
		idx.shards[i].counts = make(map[dna.Kmer]int32)
	}

	names := ref.SeqNames()
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	var firstErr error
	var errMu sync.Mutex
	for _, name := range names {
		name := name
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			seq, err := ref.Full(name)
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
				return
			}
			kz := dna.NewKmerizer(k)
			kz.Reset(seq)
			for kz.Scan() {
				km := kz.Canonical()
				shard := &idx.shards[shardFor(km)]
				shard.mu.Lock()
				shard.counts[km]++
				shard.mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return idx, nil
}

// Count implements Index.
func (idx *MemIndex) Count(kmer dna.Kmer) int {
	shard := &idx.shards[shardFor(kmer)]
	shard.mu.Lock()
	n := shard.counts[kmer]
	shard.mu.Unlock()
	return int(n)
}
