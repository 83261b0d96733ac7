package pipeline

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/nebulagt/svgenotype/counter"
	"github.com/nebulagt/svgenotype/genotype"
	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/locusindex"
	"github.com/nebulagt/svgenotype/reads"
	"github.com/nebulagt/svgenotype/refidx"
	"github.com/nebulagt/svgenotype/signature"
	"github.com/nebulagt/svgenotype/track"
)

const (
	stageSignature = "signature"
	stageFiltered  = "filtered"
	stageCounted   = "counted"
)

// Result is the full outcome of one pipeline run.
type Result struct {
	Stats       Stats
	Genotypes   []genotype.Result
	NoCallTracks []track.Track
}

// Run executes every stage of spec.md §4 in order, honoring cfg.Resume and
// cfg.Reduce by skipping the signature-extraction and mask-filter stages
// when their checkpoint shard already exists under cfg.Workdir (spec.md §5).
// Locus scoring, read counting and genotyping always run; the counted
// checkpoint is written but not read back. It is the Go rendering of
// original_source/kmer/run.py's top-level driver, in the teacher's
// data-parallel-workers-plus-join idiom (cmd/bio-fusion/main.go's
// generateCandidates/filterCandidates staging).
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var stats Stats
	ckpt := &Checkpoint{Workdir: cfg.Workdir}

	ref, err := refidx.LoadReference(ctx, cfg.ReferencePath)
	if err != nil {
		return nil, &InputError{Msg: "load reference", Err: err}
	}

	tracks, err := track.LoadCatalog(ctx, cfg.BedPath)
	if err != nil {
		return nil, &InputError{Msg: "load catalog", Err: err}
	}
	stats.TracksConsidered = len(tracks)
	catalog := make(map[string]track.Track, len(tracks))
	for _, t := range tracks {
		catalog[t.ID] = t
	}

	refIndex, err := refidx.BuildMemIndex(ref, cfg.KSize)
	if err != nil {
		return nil, errors.E(err, "pipeline: build reference index")
	}

	var alignedStore reads.AlignedStore
	if cfg.BamPath != "" {
		alignedStore, err = reads.LoadAlignedStore(ctx, cfg.BamPath)
		if err != nil {
			return nil, &InputError{Msg: "load aligned reads", Err: err}
		}
	}

	resume := cfg.Resume || cfg.Reduce

	// Stage 1: signature extraction, data-parallel over tracks with
	// cfg.Threads workers (spec.md §5). The merged records are written as
	// a single shard 0, resumable.
	var signatureRecords []*kmerrec.Record
	if resume && ckpt.Exists(ctx, stageSignature, 0) {
		signatureRecords, err = ckpt.ReadShard(ctx, stageSignature, 0)
		if err != nil {
			return nil, &PartitionError{Stage: stageSignature, Partition: "0", Err: err}
		}
		stats.PartitionsResumed++
	} else {
		signatureRecords, stats, err = extractSignatures(tracks, ref, refIndex, alignedStore, cfg, stats)
		if err != nil {
			return nil, err
		}
		if err := ckpt.WriteShard(ctx, stageSignature, 0, signatureRecords); err != nil {
			return nil, errors.E(err, "pipeline: checkpoint signature stage")
		}
	}

	// Stage 2: locus scoring (spec.md §4.3), one goroutine per chromosome
	// inside locusindex.Score.
	if err := locusindex.Score(signatureRecords, ref, cfg.KSize); err != nil {
		return nil, errors.E(err, "pipeline: locus scoring")
	}

	// Stage 3: mask filtering (spec.md §4.4).
	var filtered []*kmerrec.Record
	if resume && ckpt.Exists(ctx, stageFiltered, 0) {
		filtered, err = ckpt.ReadShard(ctx, stageFiltered, 0)
		if err != nil {
			return nil, &PartitionError{Stage: stageFiltered, Partition: "0", Err: err}
		}
		stats.PartitionsResumed++
	} else {
		filtered = locusindex.FilterLoci(signatureRecords, catalog, cfg.KSize)
		stats.KmersAfterFilter = len(filtered)
		if err := ckpt.WriteShard(ctx, stageFiltered, 0, filtered); err != nil {
			return nil, errors.E(err, "pipeline: checkpoint filter stage")
		}
	}

	presentAfterFilter := trackIDsWithKmers(filtered)

	// Stage 4: GC-adjusted counting (spec.md §4.5), the hot path.
	gc, err := counter.BuildGCTable(ref, cfg.Coverage*2)
	if err != nil {
		return nil, errors.E(err, "pipeline: build GC table")
	}
	c := counter.New(filtered, cfg.KSize, gc)
	stream, err := openReadStream(ctx, cfg)
	if err != nil {
		return nil, &InputError{Msg: "open read stream", Err: err}
	}
	if err := c.Scan(ctx, stream); err != nil {
		return nil, &InputError{Msg: "scan reads", Err: err}
	}
	c.Finish()
	if err := ckpt.WriteShard(ctx, stageCounted, 0, filtered); err != nil {
		return nil, errors.E(err, "pipeline: checkpoint counted stage")
	}

	// Stage 5: LP genotyping (spec.md §4.6). Strictly serial (spec.md §5).
	present := presentTracks(tracks, presentAfterFilter)
	g := genotype.New(cfg.ErrorRate)
	results, err := g.Genotype(present, filtered)
	if err != nil {
		return nil, &SolverError{Err: err}
	}

	resultedIDs := map[string]bool{}
	for _, r := range results {
		resultedIDs[r.TrackID] = true
	}
	var noCall []track.Track
	for _, t := range tracks {
		if !resultedIDs[t.ID] {
			noCall = append(noCall, t)
		}
	}
	stats.TracksNoCall = len(noCall)

	if err := writeOutputs(ctx, cfg, catalog, results, noCall); err != nil {
		return nil, errors.E(err, "pipeline: write outputs")
	}

	log.Printf("pipeline: done: %d tracks, %d genotyped, %d no_call, %d kmers after filter",
		len(tracks), len(results), len(noCall), stats.KmersAfterFilter)
	return &Result{Stats: stats, Genotypes: results, NoCallTracks: noCall}, nil
}

func presentTracks(tracks []track.Track, present map[string]bool) []track.Track {
	out := make([]track.Track, 0, len(tracks))
	for _, t := range tracks {
		if present[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func trackIDsWithKmers(records []*kmerrec.Record) map[string]bool {
	out := map[string]bool{}
	for _, r := range records {
		for tid := range r.Tracks {
			out[tid] = true
		}
	}
	return out
}

func openReadStream(ctx context.Context, cfg *Config) (reads.Stream, error) {
	if cfg.BamPath != "" {
		return reads.OpenBAM(ctx, cfg.BamPath)
	}
	return reads.OpenFASTQ(ctx, cfg.FastqR1, cfg.FastqR2)
}

func writeOutputs(ctx context.Context, cfg *Config, catalog map[string]track.Track, results []genotype.Result, noCall []track.Track) error {
	if err := WriteMergeBed(ctx, filepath.Join(cfg.Workdir, "merge.bed"), catalog, results); err != nil {
		return err
	}
	if err := WriteConfidenceBed(ctx, filepath.Join(cfg.Workdir, "confidence.bed"), catalog, results, nil); err != nil {
		return err
	}
	if len(noCall) > 0 {
		if err := WriteNoCallBed(ctx, filepath.Join(cfg.Workdir, "no_call.bed"), noCall); err != nil {
			return err
		}
	}
	return nil
}

// extractSignatures runs InnerKmers (and, if aligned reads are available,
// JunctionKmers) for every track, data-parallel over tracks bounded by
// cfg.Threads (spec.md §5), merging every worker's output into one global
// kmer -> Record table keyed by canonical k-mer.
func extractSignatures(tracks []track.Track, ref *refidx.Reference, refIndex refidx.Index, store reads.AlignedStore, cfg *Config, stats Stats) ([]*kmerrec.Record, Stats, error) {
	params := signature.Params{K: cfg.KSize, ReadLen: cfg.ReadLen, ErrorRate: cfg.ErrorRate, Depth: cfg.Coverage}

	type trackResult struct {
		inner, junction []*kmerrec.Record
		err             error
	}
	work := make(chan track.Track)
	out := make(chan trackResult)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				inner, err := signature.InnerKmers(t, ref, refIndex, params)
				if err != nil {
					out <- trackResult{err: errors.E(err, "pipeline: inner kmers", t.ID)}
					continue
				}
				var junction []*kmerrec.Record
				if store != nil {
					junction, err = signature.JunctionKmers(t, store, ref, params)
					if err != nil {
						out <- trackResult{err: errors.E(err, "pipeline: junction kmers", t.ID)}
						continue
					}
				}
				out <- trackResult{inner: inner, junction: junction}
			}
		}()
	}
	go func() {
		for _, t := range tracks {
			work <- t
		}
		close(work)
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	global := map[dna.Kmer]*kmerrec.Record{}
	var mu sync.Mutex
	var firstErr error
	for r := range out {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		mu.Lock()
		stats.InnerKmersExtracted += len(r.inner)
		stats.JunctionKmersExtracted += len(r.junction)
		mergeRecords(global, r.inner)
		mergeRecords(global, r.junction)
		mu.Unlock()
	}
	if firstErr != nil {
		return nil, stats, firstErr
	}

	records := make([]*kmerrec.Record, 0, len(global))
	for _, r := range global {
		records = append(records, r)
	}
	return records, stats, nil
}

// mergeRecords folds recs into global, keyed by canonical k-mer: a k-mer
// shared by two tracks (or two extraction paths for the same track)
// collapses to a single Record with the union of Loci/Tracks, the same
// dedup-by-canonical-kmer idiom signature.capAndFilter uses within one
// track's own candidate set.
func mergeRecords(global map[dna.Kmer]*kmerrec.Record, recs []*kmerrec.Record) {
	for _, r := range recs {
		existing, ok := global[r.Seq]
		if !ok {
			global[r.Seq] = r
			continue
		}
		for _, l := range r.Loci {
			existing.AddLocus(l)
		}
		for tid := range r.Tracks {
			existing.AddTrack(tid)
		}
	}
}
