// Package kmerrec defines KmerRecord, the working entity spec §3 threads
// through every stage of the pipeline: created by signature extraction,
// annotated by locus scoring, pruned by mask filtering, counted by the read
// pass, and finally consumed read-only by the genotyper.
package kmerrec

import "github.com/nebulagt/svgenotype/internal/dna"

// Source identifies which extraction path produced a KmerRecord (spec §3).
type Source string

const (
	SourceAssembly  Source = "assembly"
	SourceJunction  Source = "junction"
	SourceDeletion  Source = "deletion"
	SourceInsertion Source = "insertion"
)

// Locus is a specific genomic position, or a synthetic breakpoint marker,
// where a k-mer occurs (spec §3 "Locus").
type Locus struct {
	// Name is either "<chrom>_<position>" for a real reference locus, or
	// "junction_<track id>" / "inside_<track id>" for a synthetic one.
	Name string
	// Chrom/Position are meaningful only for real loci. Position is
	// undefined (zero) for synthetic loci.
	Chrom    string
	Position int64
	// LeftMask/RightMask are the k-length flanking sequences observed at
	// this locus, canonicalized at comparison time, not at storage time
	// (spec §3 invariants).
	LeftMask, RightMask string
}

// IsSynthetic reports whether l is a junction_* or inside_* locus rather
// than a real reference coordinate.
func (l Locus) IsSynthetic() bool {
	return len(l.Name) >= 1 && (hasPrefix(l.Name, "junction_") || hasPrefix(l.Name, "inside_"))
}

func hasPrefix(s, p string) bool {
	return len(s) >= len(p) && s[:len(p)] == p
}

// Record is a single k-mer's working state as it flows through the
// pipeline (spec §3 "KmerRecord").
type Record struct {
	Seq    dna.Kmer
	Source Source

	// Loci maps locus name -> Locus. Insertion order is irrelevant.
	Loci map[string]Locus

	// Tracks is the set of track ids this k-mer is associated with.
	Tracks map[string]bool

	// Reference is the integer reference-copy count: the whole-reference
	// count before mask filtering (§4.1-§4.3), and |Loci| (synthetic loci
	// excluded) after mask filtering (§4.4).
	Reference int

	// Count/Total accumulate during the read pass: Count is
	// flank-verified occurrences, Total is raw occurrences. Invariant:
	// Count <= Total.
	Count, Total int64

	// Coverage is the GC-adjusted expected depth at this k-mer.
	Coverage float64

	// FilteredLoci holds loci MaskFilter removed, kept for diagnostics.
	FilteredLoci map[string]Locus
	// Inverse marks a k-mer whose count is expected to rise, not fall,
	// with genotype (spec §4.4, post-filter decision 2).
	Inverse bool
}

// New creates an empty Record for the given canonical k-mer and source.
func New(seq dna.Kmer, source Source) *Record {
	return &Record{
		Seq:          seq,
		Source:       source,
		Loci:         map[string]Locus{},
		Tracks:       map[string]bool{},
		FilteredLoci: map[string]Locus{},
	}
}

// AddTrack associates this record with a track id.
func (r *Record) AddTrack(trackID string) { r.Tracks[trackID] = true }

// AddLocus records an occurrence locus, keyed by Locus.Name. Re-adding the
// same name is a no-op: masks, once fixed for a locus, do not change (spec
// §3 invariants).
func (r *Record) AddLocus(l Locus) {
	if _, ok := r.Loci[l.Name]; ok {
		return
	}
	r.Loci[l.Name] = l
}

// JunctionLoci returns the subset of r.Loci whose name begins with
// "junction_".
func (r *Record) JunctionLoci() []Locus {
	var out []Locus
	for name, l := range r.Loci {
		if hasPrefix(name, "junction_") {
			out = append(out, l)
		}
	}
	return out
}

// RealLoci returns the subset of r.Loci that are not synthetic
// (junction_*/inside_*) loci.
func (r *Record) RealLoci() []Locus {
	var out []Locus
	for _, l := range r.Loci {
		if !l.IsSynthetic() {
			out = append(out, l)
		}
	}
	return out
}
