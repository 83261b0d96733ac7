// Command svgenotype genotypes candidate structural variants against a
// reference and a read set by counting diagnostic k-mers and solving a
// small per-locus linear program, the teacher's bio-fusion/bio-pileup
// cmd/ layout applied to a different domain problem.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/nebulagt/svgenotype/pipeline"
)

func usage() {
	fmt.Fprintln(os.Stderr, `
svgenotype genotypes a catalog of candidate structural variants from a
reference k-mer index and a read set (FASTQ or BAM).

Usage:
  svgenotype -bed catalog.bed -reference ref.fa -fastq-r1 r1.fq -fastq-r2 r2.fq -workdir ./out
  svgenotype -bed catalog.bed -reference ref.fa -bam aligned.bam -workdir ./out
`)
}

func main() {
	flag.Usage = usage
	cfg := pipeline.DefaultConfig

	flag.IntVar(&cfg.KSize, "ksize", cfg.KSize, "k-mer length; must be even and <= 32")
	flag.Float64Var(&cfg.Coverage, "coverage", cfg.Coverage, "expected per-haplotype sequencing depth")
	flag.Float64Var(&cfg.Std, "std", cfg.Std, "per-k-mer count standard deviation (accepted; not read by any stage)")
	flag.IntVar(&cfg.Threads, "threads", cfg.Threads, "worker count")
	flag.BoolVar(&cfg.Simulation, "simulation", cfg.Simulation, "accepted but not read; FASTQ input is always the fastq-r1/fastq-r2 pair")
	flag.BoolVar(&cfg.Reduce, "reduce", cfg.Reduce, "skip stages whose output shards already exist")
	flag.BoolVar(&cfg.Resume, "resume", cfg.Resume, "skip stages whose output shards already exist")
	flag.IntVar(&cfg.ReadLen, "read-len", cfg.ReadLen, "nominal read length")
	flag.Float64Var(&cfg.ErrorRate, "error-rate", cfg.ErrorRate, "sequencing error rate epsilon")
	flag.StringVar(&cfg.BedPath, "bed", "", "candidate SV catalog, BED-like TSV")
	flag.StringVar(&cfg.BamPath, "bam", "", "coordinate-sorted BAM of aligned reads")
	flag.StringVar(&cfg.FastqR1, "fastq-r1", "", "FASTQ R1 (or single-end) file, optionally gzipped")
	flag.StringVar(&cfg.FastqR2, "fastq-r2", "", "FASTQ R2 file, optionally gzipped")
	flag.StringVar(&cfg.ReferencePath, "reference", "", "reference FASTA")
	flag.StringVar(&cfg.JellyfishPath, "jellyfish", "", "precomputed reference k-mer index (unused: this build counts the reference in-process)")
	flag.StringVar(&cfg.Workdir, "workdir", "", "working directory for checkpoints and outputs")
	flag.Parse()

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	result, err := pipeline.Run(ctx, &cfg)
	if err != nil {
		log.Error.Printf("svgenotype: %v", err)
		os.Exit(pipeline.ExitCode(err))
	}
	log.Printf("svgenotype: %d tracks genotyped, %d no_call", len(result.Genotypes), len(result.NoCallTracks))
}
