package pipeline

import (
	"testing"

	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresentTracksKeepsOnlyTracksWithSurvivingKmers(t *testing.T) {
	tracks := []track.Track{{ID: "sv1"}, {ID: "sv2"}, {ID: "sv3"}}
	present := map[string]bool{"sv1": true, "sv3": true}
	got := presentTracks(tracks, present)
	var ids []string
	for _, t := range got {
		ids = append(ids, t.ID)
	}
	assert.Equal(t, []string{"sv1", "sv3"}, ids)
}

func TestTrackIDsWithKmersUnionsAcrossRecords(t *testing.T) {
	r1 := kmerrec.New(1, kmerrec.SourceAssembly)
	r1.AddTrack("sv1")
	r2 := kmerrec.New(2, kmerrec.SourceAssembly)
	r2.AddTrack("sv2")
	r2.AddTrack("sv1")

	got := trackIDsWithKmers([]*kmerrec.Record{r1, r2})
	assert.True(t, got["sv1"])
	assert.True(t, got["sv2"])
	assert.Len(t, got, 2)
}

func TestMergeRecordsCollapsesSharedKmerAcrossTracks(t *testing.T) {
	global := map[dna.Kmer]*kmerrec.Record{}

	a := kmerrec.New(7, kmerrec.SourceDeletion)
	a.AddTrack("sv1")
	a.AddLocus(kmerrec.Locus{Name: "chr1_5", Chrom: "chr1", Position: 5})
	mergeRecords(global, []*kmerrec.Record{a})

	b := kmerrec.New(7, kmerrec.SourceDeletion)
	b.AddTrack("sv2")
	b.AddLocus(kmerrec.Locus{Name: "chr1_9", Chrom: "chr1", Position: 9})
	mergeRecords(global, []*kmerrec.Record{b})

	require.Len(t, global, 1)
	rec := global[7]
	assert.True(t, rec.Tracks["sv1"])
	assert.True(t, rec.Tracks["sv2"])
	assert.Len(t, rec.Loci, 2)
}
