package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/kmerrec"
)

// Checkpoint serializes kmerrec.Record shards to JSON files under workdir,
// spec.md §6's "kmers.json per stage: mapping kmer -> record snapshot --
// survives as the checkpoint between stages." One file per stage per
// shard, so a --resume run can skip any shard whose file already exists
// (spec.md §5).
type Checkpoint struct {
	Workdir string
}

// wireRecord is the on-disk shape of one kmerrec.Record: dna.Kmer already
// marshals as a JSON number (it is a named uint64), so this only needs to
// exist to pin the field set and avoid exporting unexported fields.
type wireRecord struct {
	Seq          dna.Kmer
	Source       kmerrec.Source
	Loci         map[string]kmerrec.Locus
	Tracks       map[string]bool
	Reference    int
	Count, Total int64
	Coverage     float64
	FilteredLoci map[string]kmerrec.Locus
	Inverse      bool
}

func toWire(r *kmerrec.Record) wireRecord {
	return wireRecord{
		Seq: r.Seq, Source: r.Source, Loci: r.Loci, Tracks: r.Tracks,
		Reference: r.Reference, Count: r.Count, Total: r.Total,
		Coverage: r.Coverage, FilteredLoci: r.FilteredLoci, Inverse: r.Inverse,
	}
}

func fromWire(w wireRecord) *kmerrec.Record {
	return &kmerrec.Record{
		Seq: w.Seq, Source: w.Source, Loci: w.Loci, Tracks: w.Tracks,
		Reference: w.Reference, Count: w.Count, Total: w.Total,
		Coverage: w.Coverage, FilteredLoci: w.FilteredLoci, Inverse: w.Inverse,
	}
}

// ShardPath returns the path of one stage's shard file.
func (c *Checkpoint) ShardPath(stage string, shard int) string {
	return filepath.Join(c.Workdir, stage, fmt.Sprintf("kmers-%d.json", shard))
}

// Exists reports whether a shard's checkpoint file is already present
// (spec.md §5: "the coordinator detects missing output at join ... unless
// --resume is set").
func (c *Checkpoint) Exists(ctx context.Context, stage string, shard int) bool {
	_, err := file.Stat(ctx, c.ShardPath(stage, shard))
	return err == nil
}

// WriteShard snapshots records to stage/shard's checkpoint file.
func (c *Checkpoint) WriteShard(ctx context.Context, stage string, shard int, records []*kmerrec.Record) error {
	wire := make([]wireRecord, len(records))
	for i, r := range records {
		wire[i] = toWire(r)
	}
	path := c.ShardPath(stage, shard)
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "pipeline: create checkpoint", path)
	}
	enc := json.NewEncoder(out.Writer(ctx))
	if err := enc.Encode(wire); err != nil {
		_ = out.Close(ctx)
		return errors.E(err, "pipeline: encode checkpoint", path)
	}
	if err := out.Close(ctx); err != nil {
		return errors.E(err, "pipeline: close checkpoint", path)
	}
	return nil
}

// ReadShard loads a previously written shard.
func (c *Checkpoint) ReadShard(ctx context.Context, stage string, shard int) ([]*kmerrec.Record, error) {
	path := c.ShardPath(stage, shard)
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "pipeline: open checkpoint", path)
	}
	defer func() { _ = in.Close(ctx) }()
	var wire []wireRecord
	if err := json.NewDecoder(in.Reader(ctx)).Decode(&wire); err != nil {
		return nil, errors.E(err, "pipeline: decode checkpoint", path)
	}
	records := make([]*kmerrec.Record, len(wire))
	for i, w := range wire {
		records[i] = fromWire(w)
	}
	return records, nil
}
