package pipeline

import (
	"context"
	"encoding/csv"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/nebulagt/svgenotype/genotype"
	"github.com/nebulagt/svgenotype/track"
)

// writeTSV opens path and runs fn against a tab-separated csv.Writer,
// closing both the writer and the underlying file file -- the teacher's
// own createFile/writeString pattern (cmd/bio-fusion/main.go), rendered
// through encoding/csv instead of raw Fprintf.
func writeTSV(ctx context.Context, path string, fn func(w *csv.Writer) error) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "pipeline: create", path)
	}
	w := csv.NewWriter(out.Writer(ctx))
	w.Comma = '\t'
	if err := fn(w); err != nil {
		_ = out.Close(ctx)
		return errors.E(err, "pipeline: write", path)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = out.Close(ctx)
		return errors.E(err, "pipeline: flush", path)
	}
	return errors.E(out.Close(ctx), "pipeline: close", path)
}

// WriteMergeBed writes merge.bed: chrom begin end genotype
// allele_fraction, tab-separated (spec.md §6).
func WriteMergeBed(ctx context.Context, path string, tracks map[string]track.Track, results []genotype.Result) error {
	return writeTSV(ctx, path, func(w *csv.Writer) error {
		for _, r := range results {
			t, ok := tracks[r.TrackID]
			if !ok {
				continue
			}
			row := []string{
				t.Chrom,
				strconv.FormatInt(t.Begin, 10),
				strconv.FormatInt(t.End, 10),
				r.Genotype,
				strconv.FormatFloat(r.AlleleFraction, 'f', 4, 64),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// TrueGenotypes optionally supplies the known genotype per track id for
// simulation runs; nil/missing entries render as "NA" in confidence.bed.
type TrueGenotypes map[string]string

// WriteConfidenceBed writes confidence.bed: chrom begin end
// allele_fraction rounded_allele_fraction lp_genotype true_genotype
// t_value p_value num_kmers, tab-separated (spec.md §6).
func WriteConfidenceBed(ctx context.Context, path string, tracks map[string]track.Track, results []genotype.Result, truth TrueGenotypes) error {
	return writeTSV(ctx, path, func(w *csv.Writer) error {
		for _, r := range results {
			t, ok := tracks[r.TrackID]
			if !ok {
				continue
			}
			trueGT := "NA"
			if truth != nil {
				if v, ok := truth[r.TrackID]; ok {
					trueGT = v
				}
			}
			row := []string{
				t.Chrom,
				strconv.FormatInt(t.Begin, 10),
				strconv.FormatInt(t.End, 10),
				strconv.FormatFloat(r.AlleleFraction, 'f', 4, 64),
				strconv.FormatFloat(r.RoundedAlleleFraction, 'f', 1, 64),
				r.Genotype,
				trueGT,
				strconv.FormatFloat(r.TValue, 'f', 4, 64),
				strconv.FormatFloat(r.PValue, 'g', 4, 64),
				strconv.Itoa(r.NumKmers),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteNoCallBed appends a bed-style line per no_call track, for
// diagnostics alongside merge.bed (spec.md §4.7: "recorded as no_call").
func WriteNoCallBed(ctx context.Context, path string, tracks []track.Track) error {
	return writeTSV(ctx, path, func(w *csv.Writer) error {
		for _, t := range tracks {
			row := []string{t.Chrom, strconv.FormatInt(t.Begin, 10), strconv.FormatInt(t.End, 10), t.ID, "no_call"}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}
