package pipeline

// Stats is the run's summary counters, the same flat-struct-with-Merge
// shape as fusion/stats.go's Stats -- one value accumulated per partition,
// folded together at each stage's join.
type Stats struct {
	// TracksConsidered is the number of candidate SVs loaded from the
	// catalog.
	TracksConsidered int
	// TracksNoCall is the number of tracks that lost all their k-mers at
	// some stage and were recorded as no_call (spec.md §4.7).
	TracksNoCall int
	// InnerKmersExtracted/JunctionKmersExtracted sum, over tracks, the
	// records each extractor returned, after InnerKmers' cap and
	// reference-count filter (spec.md §4.1/§4.2).
	InnerKmersExtracted, JunctionKmersExtracted int
	// KmersAfterFilter is the surviving k-mer count after MaskFilter
	// (spec.md §4.4).
	KmersAfterFilter int
	// ReadsScanned/ReadParseErrors are read-pass counters that Run leaves
	// at zero: counter.Scan does not count reads, and a read-parser error
	// ends the scan with that error rather than being skipped.
	ReadsScanned, ReadParseErrors int
	// PartitionsResumed counts stage partitions skipped because their
	// output shard already existed (spec.md §5 "--resume").
	PartitionsResumed int
}

// Merge adds the field values of two Stats and returns a new Stats, the
// same accumulation idiom as fusion/stats.go:Stats.Merge.
func (s Stats) Merge(o Stats) Stats {
	s.TracksConsidered += o.TracksConsidered
	s.TracksNoCall += o.TracksNoCall
	s.InnerKmersExtracted += o.InnerKmersExtracted
	s.JunctionKmersExtracted += o.JunctionKmersExtracted
	s.KmersAfterFilter += o.KmersAfterFilter
	s.ReadsScanned += o.ReadsScanned
	s.ReadParseErrors += o.ReadParseErrors
	s.PartitionsResumed += o.PartitionsResumed
	return s
}
