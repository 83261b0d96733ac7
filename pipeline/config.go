// Package pipeline wires the core packages (track, refidx, reads,
// signature, locusindex, counter, genotype) into the end-to-end run spec.md
// §5/§6 describe: a static partition of work per stage, durable per-stage
// checkpoints under workdir, and .bed outputs.
package pipeline

// Config is the single immutable configuration value for a run, built once
// from flags in cmd/svgenotype and threaded by pointer everywhere (spec.md
// §9: "Singleton config becomes an immutable process-wide value loaded at
// startup and passed by reference through the pipeline" -- the Go
// resolution of original_source/kmer/config.py's Configuration singleton).
type Config struct {
	// KSize is the k-mer length; must be even and <= 32 (spec.md §6).
	KSize int
	// Coverage is the expected per-haplotype sequencing depth, the GC
	// adjustment's fallback default and the genotyper's residue scale.
	Coverage float64
	// Std is the per-k-mer count standard deviation. It is accepted but
	// not read by any stage; the confidence probe does not use it.
	Std float64
	// Threads is the number of signature-extraction workers. Locus
	// scoring, the GC table and the reference index size their worker
	// pools by runtime.NumCPU instead.
	Threads int
	// Simulation is accepted but not read by Run: FASTQ input is always
	// the single FastqR1/FastqR2 pair, and counter.MergeSimulationShards
	// is not called.
	Simulation bool
	// Reduce/Resume, when true, skip the signature-extraction and
	// mask-filter stages whose checkpoint shard already exists under
	// Workdir; the other stages always run.
	Reduce, Resume bool
	// ReadLen is the nominal read length used to window JunctionKmers.
	ReadLen int
	// ErrorRate is the sequencing error rate epsilon (spec.md §4.2, §4.6).
	ErrorRate float64

	BedPath       string
	BamPath       string
	FastqR1       string
	FastqR2       string
	ReferencePath string
	JellyfishPath string
	Workdir       string
}

// Validate checks the invariants spec.md §6 places on Config, returning an
// *InputError on violation.
func (c *Config) Validate() error {
	if c.KSize <= 0 || c.KSize > 32 || c.KSize%2 != 0 {
		return &InputError{Msg: "ksize must be even and in (0, 32]"}
	}
	if c.Threads <= 0 {
		return &InputError{Msg: "threads must be positive"}
	}
	if c.BedPath == "" {
		return &InputError{Msg: "bed is required"}
	}
	if c.ReferencePath == "" {
		return &InputError{Msg: "reference is required"}
	}
	if c.BamPath == "" && c.FastqR1 == "" {
		return &InputError{Msg: "one of bam or fastq is required"}
	}
	if c.Workdir == "" {
		return &InputError{Msg: "workdir is required"}
	}
	return nil
}

// DefaultConfig mirrors fusion/opts.go's DefaultOpts pattern: sane defaults
// a caller can start from and override selectively.
var DefaultConfig = Config{
	KSize:     32,
	Coverage:  30.0,
	Std:       5.0,
	Threads:   4,
	ReadLen:   150,
	ErrorRate: 0.01,
}
