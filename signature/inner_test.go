package signature

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/refidx"
	"github.com/nebulagt/svgenotype/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIndex is a refidx.Index test double returning a fixed count for every
// k-mer, so capAndFilter's refCountCap/innerCap thresholds never trigger.
type fakeIndex struct {
	def int
}

func newFakeIndex(def int) *fakeIndex { return &fakeIndex{def: def} }

func (f *fakeIndex) Count(dna.Kmer) int { return f.def }

func buildReference(t *testing.T, chrom, seq string) *refidx.Reference {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(path, []byte(">"+chrom+"\n"+seq+"\n"), 0644))
	ref, err := refidx.LoadReference(vcontext.Background(), path)
	require.NoError(t, err)
	return ref
}

func TestInnerKmersDeletionAssociatesEveryRecordWithItsTrack(t *testing.T) {
	k := 8
	flank := "ACGTACGTACGTACGTACGTACGT"
	ref := buildReference(t, "chr1", flank+"TTTTTTTTTTTTTTTT"+flank)
	idx := newFakeIndex(0)

	tr := track.Track{
		ID: "sv1", Chrom: "chr1", SVType: track.Deletion,
		Begin: int64(len(flank)), End: int64(len(flank) + 16), SVLen: 16,
	}
	recs, err := InnerKmers(tr, ref, idx, Params{K: k})
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.True(t, r.Tracks["sv1"], "every deletion inner k-mer must carry its track id")
	}
}

func TestInnerKmersInsertionOnlyKeepsWindowsTouchingInsertedSequence(t *testing.T) {
	k := 8
	flank := "AAAAAAAACCCCCCCC"
	ref := buildReference(t, "chr1", flank+flank)

	tr := track.Track{
		ID: "sv2", Chrom: "chr1", SVType: track.Insertion,
		Begin: int64(len(flank)), End: int64(len(flank)), SVLen: 8, InsertedSeq: "GGGGGGGG",
	}
	recs, err := InnerKmers(tr, ref, newFakeIndex(0), Params{K: k})
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.True(t, r.Tracks["sv2"])
		assert.Equal(t, 1, len(r.Loci))
		_, ok := r.Loci[tr.InsideLocusName()]
		assert.True(t, ok)
	}
}

func TestInnerKmersSkipsTracksSpanningTooMuchReference(t *testing.T) {
	tr := track.Track{ID: "sv3", Chrom: "chr1", SVType: track.Deletion, Begin: 0, End: 2_000_000, SVLen: 2_000_000}
	ref := buildReference(t, "chr1", "ACGT")
	recs, err := InnerKmers(tr, ref, newFakeIndex(0), Params{K: 8})
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestInnerKmersRejectsUnknownSVType(t *testing.T) {
	tr := track.Track{ID: "sv4", Chrom: "chr1", SVType: track.Type("DUP"), Begin: 0, End: 10}
	ref := buildReference(t, "chr1", "ACGTACGTACGTACGTACGTACGT")
	_, err := InnerKmers(tr, ref, newFakeIndex(0), Params{K: 8})
	assert.Error(t, err)
}
