package refidx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/nebulagt/svgenotype/internal/dna"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFasta(t *testing.T, records map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.fa")
	var body string
	for name, seq := range records {
		body += ">" + name + "\n" + seq + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadReferenceSeqNamesAndLen(t *testing.T) {
	path := writeFasta(t, map[string]string{"chr1": "ACGTACGTACGT"})
	ref, err := LoadReference(vcontext.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"chr1"}, ref.SeqNames())
	n, err := ref.Len("chr1")
	require.NoError(t, err)
	assert.EqualValues(t, 12, n)
}

func TestLenUnknownChromosomeErrors(t *testing.T) {
	path := writeFasta(t, map[string]string{"chr1": "ACGT"})
	ref, err := LoadReference(vcontext.Background(), path)
	require.NoError(t, err)
	_, err = ref.Len("chrX")
	assert.Error(t, err)
}

func TestSliceClampsOutOfRangeBounds(t *testing.T) {
	path := writeFasta(t, map[string]string{"chr1": "ACGTACGT"})
	ref, err := LoadReference(vcontext.Background(), path)
	require.NoError(t, err)

	s, err := ref.Slice("chr1", -5, 4)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", s)

	s, err = ref.Slice("chr1", 4, 100)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", s)

	s, err = ref.Slice("chr1", 6, 2)
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestFullReturnsEntireChromosome(t *testing.T) {
	path := writeFasta(t, map[string]string{"chr1": "ACGTACGTACGT"})
	ref, err := LoadReference(vcontext.Background(), path)
	require.NoError(t, err)
	s, err := ref.Full("chr1")
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGTACGT", s)
}

func TestBuildMemIndexCountsCanonicalOccurrences(t *testing.T) {
	// "AAAA" appears once; its reverse complement "TTTT" appears once too,
	// so the canonical count across both strands should be 2.
	path := writeFasta(t, map[string]string{"chr1": "AAAATTTT"})
	ref, err := LoadReference(vcontext.Background(), path)
	require.NoError(t, err)

	idx, err := BuildMemIndex(ref, 4)
	require.NoError(t, err)

	canon := dna.Canonical("AAAA")
	assert.Equal(t, 2, idx.Count(canon))

	unseen := dna.Canonical("CCCC")
	assert.Equal(t, 0, idx.Count(unseen))
}
