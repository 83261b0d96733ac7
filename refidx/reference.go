// Package refidx wraps the two external collaborators spec §1 calls out as
// out-of-scope: FASTA parsing (here, a thin layer over
// github.com/grailbio/bio/encoding/fasta) and the whole-genome reference
// k-mer index that answers count-in-reference queries (here, the Index
// interface). Everything downstream of this package depends only on
// Reference and Index, never on how either is produced.
package refidx

import (
	"context"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bio/encoding/fasta"
)

// Reference is random access to the reference genome used to build SV
// signatures and to score candidate loci.
type Reference struct {
	fa       fasta.Fasta
	seqNames []string
}

// LoadReference reads a (small/medium) reference FASTA fully into memory,
// the way fusion/gene_db.go:ReadTranscriptome reads the transcriptome
// reference. Chromosome-scale genomes should be sharded per chromosome by
// the caller and one Reference built per shard; the LocusScorer stage
// partitions work this way (spec §5).
func LoadReference(ctx context.Context, path string) (*Reference, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "refidx: open reference", path)
	}
	defer func() {
		if cerr := f.Close(ctx); cerr != nil {
			log.Error.Printf("refidx: close %s: %v", path, cerr)
		}
	}()
	fa, err := fasta.New(f.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, "refidx: parse reference", path)
	}
	return &Reference{fa: fa, seqNames: fa.SeqNames()}, nil
}

// SeqNames returns the chromosome/contig names in FASTA order.
func (r *Reference) SeqNames() []string { return r.seqNames }

// Len returns the length of chrom, or an error if chrom is unknown -- a
// missing chromosome is a hard failure everywhere it is looked up (spec
// §4.3 "Failure mode").
func (r *Reference) Len(chrom string) (int64, error) {
	n, err := r.fa.Len(chrom)
	if err != nil {
		return 0, errors.E(err, "refidx: unknown chromosome", chrom)
	}
	return int64(n), nil
}

// Slice returns chrom[begin:end), clamped to the chromosome's bounds. begin
// and end may be negative or past the chromosome end; the returned range is
// silently clamped so callers (which pad windows by k on each side near
// SV catalog edges) don't need bounds-check boilerplate at every call site.
func (r *Reference) Slice(chrom string, begin, end int64) (string, error) {
	n, err := r.Len(chrom)
	if err != nil {
		return "", err
	}
	if begin < 0 {
		begin = 0
	}
	if end > n {
		end = n
	}
	if end <= begin {
		return "", nil
	}
	s, err := r.fa.Get(chrom, uint64(begin), uint64(end))
	if err != nil {
		return "", errors.E(err, "refidx: slice", chrom)
	}
	return s, nil
}

// Full returns the entire sequence for chrom.
func (r *Reference) Full(chrom string) (string, error) {
	n, err := r.Len(chrom)
	if err != nil {
		return "", err
	}
	return r.Slice(chrom, 0, n)
}
