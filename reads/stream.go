package reads

import (
	"context"
	"io"

	"github.com/biogo/hts/bam"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/bio/encoding/fastq"
	"github.com/klauspost/compress/gzip"
)

// Pair is one unit of read evidence GcAdjustedCounter scans: a single read,
// or a mate pair sharing a fragment name (spec §4.5 "paired-end overlap
// correction").
type Pair struct {
	Name   string
	R1, R2 string // R2 is empty for single-end/unpaired evidence.
	// Chrom/R1Pos are the mapped chromosome and leftmost mapped position,
	// set only for BAM-backed streams; empty/zero for FASTQ.
	Chrom        string
	R1Pos, R2Pos int64
	Aligned      bool
}

// Stream is a single forward pass over a read set, shard-able by the
// caller's choice of input files (spec §5: "reads sharded by file offset").
type Stream interface {
	// Next returns the next Pair, or io.EOF when exhausted.
	Next() (Pair, error)
	Close(ctx context.Context) error
}

// fastqStream adapts a pair of (possibly gzipped) FASTQ files, the
// teacher's own read source (cmd/bio-fusion/main.go:readFASTQ,
// encoding/fastq.PairScanner).
type fastqStream struct {
	ctx      context.Context
	f1, f2   file.File
	sc       *fastq.PairScanner
	hasR2    bool
}

// OpenFASTQ opens one or two FASTQ shards (spec §6 "simulation: when true,
// read two FASTQ shards per worker"). r2Path may be empty for single-end
// data.
func OpenFASTQ(ctx context.Context, r1Path, r2Path string) (Stream, error) {
	f1, err := file.Open(ctx, r1Path)
	if err != nil {
		return nil, errors.E(err, "reads: open", r1Path)
	}
	var f2 file.File
	r1 := mustDecompress(f1.Reader(ctx), r1Path)
	var r2 io.Reader = r1
	hasR2 := r2Path != ""
	if hasR2 {
		f2, err = file.Open(ctx, r2Path)
		if err != nil {
			_ = f1.Close(ctx)
			return nil, errors.E(err, "reads: open", r2Path)
		}
		r2 = mustDecompress(f2.Reader(ctx), r2Path)
	}
	mask := fastq.ID | fastq.Seq
	var sc *fastq.PairScanner
	if hasR2 {
		sc = fastq.NewPairScanner(r1, r2, mask)
	} else {
		sc = fastq.NewPairScanner(r1, r1, mask)
	}
	return &fastqStream{ctx: ctx, f1: f1, f2: f2, sc: sc, hasR2: hasR2}, nil
}

func mustDecompress(r io.Reader, path string) io.Reader {
	if len(path) > 3 && path[len(path)-3:] == ".gz" {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return r
		}
		return gz
	}
	return r
}

func (s *fastqStream) Next() (Pair, error) {
	var r1, r2 fastq.Read
	if !s.sc.Scan(&r1, &r2) {
		if err := s.sc.Err(); err != nil {
			return Pair{}, err
		}
		return Pair{}, io.EOF
	}
	p := Pair{Name: trimReadName(r1.ID), R1: r1.Seq}
	if s.hasR2 {
		p.R2 = r2.Seq
	}
	return p, nil
}

func trimReadName(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == ' ' {
			return id[:i]
		}
	}
	return id
}

func (s *fastqStream) Close(ctx context.Context) error {
	e := errors.Once{}
	e.Set(s.f1.Close(ctx))
	if s.f2 != nil {
		e.Set(s.f2.Close(ctx))
	}
	return e.Err()
}

// bamStream adapts a coordinate-sorted BAM file, scanning every record
// exactly once regardless of alignment status: GcAdjustedCounter is
// concerned only with the sequence content of each read, not its mapping
// (spec §4.5 scans "the read stream (FASTQ or BAM)").
type bamStream struct {
	f  file.File
	br *bam.Reader
}

// OpenBAM opens a BAM file for a single streaming pass.
func OpenBAM(ctx context.Context, path string) (Stream, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "reads: open bam", path)
	}
	br, err := bam.NewReader(f.Reader(ctx), 1)
	if err != nil {
		_ = f.Close(ctx)
		return nil, errors.E(err, "reads: bam header", path)
	}
	return &bamStream{f: f, br: br}, nil
}

func (s *bamStream) Next() (Pair, error) {
	rec, err := s.br.Read()
	if err != nil {
		if err == io.EOF {
			return Pair{}, io.EOF
		}
		return Pair{}, errors.E(err, "reads: decode bam record")
	}
	p := Pair{Name: rec.Name, R1: string(rec.Seq.Expand()), Aligned: rec.Ref != nil, R1Pos: int64(rec.Pos)}
	if rec.Ref != nil {
		p.Chrom = rec.Ref.Name()
	}
	return p, nil
}

func (s *bamStream) Close(ctx context.Context) error {
	s.br.Close()
	return s.f.Close(ctx)
}
