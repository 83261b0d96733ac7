package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsMergeSumsEveryField(t *testing.T) {
	a := Stats{TracksConsidered: 10, TracksNoCall: 1, InnerKmersExtracted: 100,
		JunctionKmersExtracted: 20, KmersAfterFilter: 90, ReadsScanned: 1000,
		ReadParseErrors: 2, PartitionsResumed: 1}
	b := Stats{TracksConsidered: 5, TracksNoCall: 0, InnerKmersExtracted: 50,
		JunctionKmersExtracted: 10, KmersAfterFilter: 40, ReadsScanned: 500,
		ReadParseErrors: 1, PartitionsResumed: 0}

	got := a.Merge(b)
	assert.Equal(t, Stats{
		TracksConsidered: 15, TracksNoCall: 1, InnerKmersExtracted: 150,
		JunctionKmersExtracted: 30, KmersAfterFilter: 130, ReadsScanned: 1500,
		ReadParseErrors: 3, PartitionsResumed: 1,
	}, got)
}

func TestStatsMergeIsOrderIndependent(t *testing.T) {
	a := Stats{TracksConsidered: 3}
	b := Stats{TracksConsidered: 7}
	assert.Equal(t, a.Merge(b), b.Merge(a))
}
