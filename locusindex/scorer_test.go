package locusindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/nebulagt/svgenotype/kmerrec"
	"github.com/nebulagt/svgenotype/refidx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFasta(t *testing.T, name, seq string) *refidx.Reference {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.fa")
	require.NoError(t, os.WriteFile(path, []byte(">"+name+"\n"+seq+"\n"), 0644))
	ref, err := refidx.LoadReference(vcontext.Background(), path)
	require.NoError(t, err)
	return ref
}

func TestScoreAnnotatesMatchingKmersWithLoci(t *testing.T) {
	seq := "ACGTACGTACGTACGT"
	ref := writeFasta(t, "chr1", seq)

	k := 4
	target := seq[4:8] // "ACGT", occurs at several offsets
	canon := dna.Canonical(target)
	rec := kmerrec.New(canon, kmerrec.SourceAssembly)

	require.NoError(t, Score([]*kmerrec.Record{rec}, ref, k))

	assert.NotEmpty(t, rec.Loci)
	for _, l := range rec.RealLoci() {
		assert.Equal(t, "chr1", l.Chrom)
	}
	assert.Equal(t, len(rec.RealLoci()), rec.Reference)
}

func TestScoreLeavesUnmatchedRecordWithoutLoci(t *testing.T) {
	seq := "ACGTACGTACGTACGT"
	ref := writeFasta(t, "chr1", seq)

	rec := kmerrec.New(dna.Canonical("GGGGCCCC"), kmerrec.SourceAssembly)
	require.NoError(t, Score([]*kmerrec.Record{rec}, ref, 8))
	assert.Empty(t, rec.Loci)
	assert.Equal(t, 0, rec.Reference)
}
