package counter

import (
	"runtime"
	"sync"

	"github.com/nebulagt/svgenotype/refidx"
)

const (
	gcWindow     = 200
	gcBucketSize = 1 // percent
	gcBuckets    = 100/gcBucketSize + 1
)

// GCTable maps a genomic window's GC content to an expected sequencing
// depth, the collaborator spec §4.5's "coverage contract" and §2's
// GcAdjustedCounter name refer to. Grounded on the per-chromosome parallel
// scan shape of refidx.BuildMemIndex/locusindex.Score, generalized from
// counting k-mers to accumulating (gc-bucket -> depth) statistics.
//
// Building the table itself is a reference-only pass: bucketCount[b] is
// fixed at construction time to the number of 200bp reference windows whose
// GC percent falls in bucket b. Observe then accumulates read-start counts
// into bucketTotal as the read stream is scanned, so bucketTotal/bucketCount
// is the average per-window read depth among windows sharing that GC
// content -- the expected depth ExpectedDepth reports. Buckets with no
// reference windows (bucketCount == 0) or no observed read starts yet
// (bucketTotal == 0) fall back to the sample's configured average coverage.
type GCTable struct {
	windowGCPct  map[string][]int // chrom -> GC percent per 200bp window
	mu           sync.Mutex
	bucketTotal  [gcBuckets]int64
	bucketCount  [gcBuckets]int64
	defaultDepth float64
}

// BuildGCTable computes the GC percent of every 200bp window of every
// chromosome in ref.
func BuildGCTable(ref *refidx.Reference, defaultDepth float64) (*GCTable, error) {
	t := &GCTable{windowGCPct: map[string][]int{}, defaultDepth: defaultDepth}
	names := ref.SeqNames()
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for _, name := range names {
		name := name
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			seq, err := ref.Full(name)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			nWin := (len(seq) + gcWindow - 1) / gcWindow
			pcts := make([]int, nWin)
			for w := 0; w < nWin; w++ {
				begin := w * gcWindow
				end := begin + gcWindow
				if end > len(seq) {
					end = len(seq)
				}
				pcts[w] = gcPercent(seq[begin:end])
			}
			mu.Lock()
			t.windowGCPct[name] = pcts
			for _, pct := range pcts {
				t.bucketCount[pct/gcBucketSize]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return t, nil
}

func gcPercent(seq string) int {
	if len(seq) == 0 {
		return 0
	}
	gc := 0
	for i := 0; i < len(seq); i++ {
		switch seq[i] {
		case 'G', 'g', 'C', 'c':
			gc++
		}
	}
	return gc * 100 / len(seq)
}

// bucket returns the GC-percent bucket for the 200bp window containing
// position pos on chrom, or -1 if chrom/pos is out of range.
func (t *GCTable) bucket(chrom string, pos int64) int {
	pcts, ok := t.windowGCPct[chrom]
	if !ok {
		return -1
	}
	w := int(pos) / gcWindow
	if w < 0 || w >= len(pcts) {
		return -1
	}
	return pcts[w] / gcBucketSize
}

// Observe records a single read-start observation at (chrom, pos),
// accumulating per-GC-bucket depth statistics. bucketCount is fixed at
// BuildGCTable time; Observe only grows the numerator.
func (t *GCTable) Observe(chrom string, pos int64) {
	b := t.bucket(chrom, pos)
	if b < 0 {
		return
	}
	t.mu.Lock()
	t.bucketTotal[b]++
	t.mu.Unlock()
}

// ExpectedDepth returns the GC-adjusted expected depth at (chrom, pos),
// spec §4.5's "coverage contract" input.
func (t *GCTable) ExpectedDepth(chrom string, pos int64) float64 {
	b := t.bucket(chrom, pos)
	if b < 0 {
		return t.defaultDepth
	}
	t.mu.Lock()
	n := t.bucketCount[b]
	sum := t.bucketTotal[b]
	t.mu.Unlock()
	if n == 0 || sum == 0 {
		return t.defaultDepth
	}
	return float64(sum) / float64(n)
}
