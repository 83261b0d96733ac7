package signature

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/nebulagt/svgenotype/reads"
	"github.com/nebulagt/svgenotype/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAlignedStore is an in-memory reads.AlignedStore over a fixed slice.
type fakeAlignedStore struct {
	reads []reads.AlignedRead
}

func (s *fakeAlignedStore) Overlapping(chrom string, begin, end int64) []reads.AlignedRead {
	var out []reads.AlignedRead
	for _, r := range s.reads {
		if r.Chrom == chrom && r.Pos < end && r.MappedEnd > begin {
			out = append(out, r)
		}
	}
	return out
}

func TestBandedEditDistance(t *testing.T) {
	assert.Equal(t, 0, bandedEditDistance("ACGT", "ACGT", 3))
	assert.Equal(t, 1, bandedEditDistance("ACGT", "ACGG", 3))
	assert.Equal(t, 4, bandedEditDistance("ACGT", "TGCA", 3)) // exceeds band(3): capped at band+1
}

func TestClassifySpansFindsClipsAndInDelsNearSVLen(t *testing.T) {
	read := reads.AlignedRead{
		Seq: "AAAACCCCGGGGTTTT",
		Cigar: []reads.CigarOp{
			{Type: sam.CigarSoftClipped, Len: 4},
			{Type: sam.CigarMatch, Len: 8},
			{Type: sam.CigarInsertion, Len: 4},
		},
	}
	spans := classifySpans(read, 4)
	require.Len(t, spans, 2)
	assert.True(t, spans[0].isClip)
	assert.True(t, spans[0].leftClip)
	assert.Equal(t, 0, spans[0].begin)
	assert.Equal(t, 4, spans[0].end)
	assert.False(t, spans[1].isClip)
}

func TestClassifySpansIgnoresIndelsOutsideSVLenRange(t *testing.T) {
	read := reads.AlignedRead{
		Seq: "AAAACCCCGGGGTTTT",
		Cigar: []reads.CigarOp{
			{Type: sam.CigarMatch, Len: 8},
			{Type: sam.CigarInsertion, Len: 1}, // far from svlen=100
			{Type: sam.CigarMatch, Len: 7},
		},
	}
	spans := classifySpans(read, 100)
	assert.Empty(t, spans)
}

func TestCandidateWindowsDeletionPullsBothBreakpoints(t *testing.T) {
	tr := track.Track{SVType: track.Deletion, Begin: 1000, End: 2000}
	windows := candidateWindows(tr, 150)
	require.Len(t, windows, 2)
	assert.Equal(t, [2]int64{850, 1150}, windows[0])
	assert.Equal(t, [2]int64{1850, 2150}, windows[1])
}

func TestCandidateWindowsInsertionPullsOneSite(t *testing.T) {
	tr := track.Track{SVType: track.Insertion, Begin: 500, End: 500}
	windows := candidateWindows(tr, 150)
	require.Len(t, windows, 1)
	assert.Equal(t, [2]int64{350, 650}, windows[0])
}

func TestOverlapLenHalfOpenIntersection(t *testing.T) {
	assert.Equal(t, 5, overlapLen(0, 10, 5, 15))
	assert.Equal(t, 0, overlapLen(0, 5, 5, 10))
	assert.Equal(t, 0, overlapLen(0, 5, 10, 15))
}

func TestJunctionKmersRequiresMinimumReadSupport(t *testing.T) {
	tr := track.Track{ID: "sv1", Chrom: "chr1", SVType: track.Deletion, Begin: 100, End: 200, SVLen: 100}
	// A single supporting read (below the threshold floor of 3) should
	// yield no junction k-mers.
	seq := "ACGTACGTACGTACGTACGTACGTACGTACGT"
	read := reads.AlignedRead{
		Name: "r1", Chrom: "chr1", Pos: 95, MappedEnd: 100,
		Seq:   seq,
		Cigar: []reads.CigarOp{{Type: sam.CigarSoftClipped, Len: len(seq)}},
	}
	store := &fakeAlignedStore{reads: []reads.AlignedRead{read}}
	ref := buildReference(t, "chr1", "ACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGTACGT")

	recs, err := JunctionKmers(tr, store, ref, Params{K: 16, ReadLen: 150, Depth: 30})
	require.NoError(t, err)
	assert.Empty(t, recs)
}
