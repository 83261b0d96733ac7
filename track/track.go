// Package track holds the candidate structural-variant catalog: immutable
// Track records loaded once from a BED-like TSV and threaded by id through
// the rest of the pipeline (spec §3 "Track").
package track

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// Type is the structural-variant class of a Track.
type Type string

const (
	Deletion             Type = "DEL"
	Insertion            Type = "INS"
	Inversion            Type = "INV"
	MobileElementInsertion Type = "MEI"
)

// Track is an immutable candidate structural variant. Coordinates are
// half-open, 0-based, in reference space.
type Track struct {
	ID      string
	Chrom   string
	Begin   int64
	End     int64
	SVType  Type
	SVLen   int64
	// InsertedSeq is the spliced-in sequence for INS/MEI tracks; empty for
	// DEL/INV.
	InsertedSeq string
}

// JunctionLocusName is the synthetic locus name used for every breakpoint
// locus of this track (spec §3 "Locus"): its reference position is
// intentionally undefined.
func (t Track) JunctionLocusName() string { return "junction_" + t.ID }

// InsideLocusName is the synthetic locus name used for inner k-mers of an
// INS/MEI track (spec §4.1): flanking sequence is copied from the altered
// allele, not a real reference position.
func (t Track) InsideLocusName() string { return "inside_" + t.ID }

// row is the on-disk shape of one BED-like TSV line (spec §6):
// chrom, begin, end, id, svtype, svlen[, inserted_seq].
type row struct {
	Chrom       string `tsv:"chrom"`
	Begin       int64  `tsv:"begin"`
	End         int64  `tsv:"end"`
	ID          string `tsv:"id"`
	SVType      string `tsv:"svtype"`
	SVLen       int64  `tsv:"svlen"`
	InsertedSeq string `tsv:"inserted_seq"`
}

// LoadCatalog reads the SV candidate catalog from a BED-like TSV file. A
// missing inserted_seq column is tolerated for DEL/INV rows but rejected for
// INS/MEI rows. Any row-level problem is returned as a plain error; the
// pipeline package wraps it into an InputError for spec §6's exit code 2.
func LoadCatalog(ctx context.Context, path string) ([]Track, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "track: open catalog", path)
	}
	defer func() {
		if cerr := f.Close(ctx); cerr != nil {
			log.Error.Printf("track: close %s: %v", path, cerr)
		}
	}()

	r := tsv.NewReader(f.Reader(ctx))
	r.HasHeaderRow = true
	r.ValidateHeader = false // inserted_seq is an optional trailing column

	var tracks []Track
	seen := map[string]bool{}
	for {
		var rec row
		if err := r.Read(&rec); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(err, "track: parse row")
		}
		typ := Type(strings.ToUpper(strings.TrimSpace(rec.SVType)))
		switch typ {
		case Deletion, Insertion, Inversion, MobileElementInsertion:
		default:
			return nil, errors.Errorf("track: unknown svtype %q for track %s", rec.SVType, rec.ID)
		}
		if (typ == Insertion || typ == MobileElementInsertion) && rec.InsertedSeq == "" {
			return nil, errors.Errorf("track: track %s: %s requires inserted_seq", rec.ID, typ)
		}
		if rec.End < rec.Begin {
			return nil, errors.Errorf("track: track %s: end < begin", rec.ID)
		}
		if seen[rec.ID] {
			return nil, errors.Errorf("track: duplicate track id %s", rec.ID)
		}
		seen[rec.ID] = true
		tracks = append(tracks, Track{
			ID:          rec.ID,
			Chrom:       rec.Chrom,
			Begin:       rec.Begin,
			End:         rec.End,
			SVType:      typ,
			SVLen:       rec.SVLen,
			InsertedSeq: rec.InsertedSeq,
		})
	}
	log.Printf("track: loaded %d candidate SVs from %s", len(tracks), path)
	return tracks, nil
}
