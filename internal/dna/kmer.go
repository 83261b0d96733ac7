// Package dna implements the 2-bit-packed k-mer encoding shared by every
// stage of the genotyping pipeline: signature extraction, locus scoring,
// counting, and the LP genotyper all canonicalize through this package.
package dna

import (
	"github.com/grailbio/base/simd"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/bio/biosimd"
)

const (
	invalidBaseBits = uint8(255)
	// MaxKmerLength is the largest k this package can encode in a uint64.
	MaxKmerLength = 32
)

var (
	asciiToBits            [256]uint8
	asciiToComplementBits  [256]uint8
)

func init() {
	for i := range asciiToBits {
		asciiToBits[i] = invalidBaseBits
		asciiToComplementBits[i] = invalidBaseBits
	}
	asciiToBits['A'], asciiToBits['a'] = 0, 0
	asciiToBits['C'], asciiToBits['c'] = 1, 1
	asciiToBits['G'], asciiToBits['g'] = 2, 2
	asciiToBits['T'], asciiToBits['t'] = 3, 3

	asciiToComplementBits['A'], asciiToComplementBits['a'] = 3, 3
	asciiToComplementBits['C'], asciiToComplementBits['c'] = 2, 2
	asciiToComplementBits['G'], asciiToComplementBits['g'] = 1, 1
	asciiToComplementBits['T'], asciiToComplementBits['t'] = 0, 0
}

// Kmer is a 2-bit-per-base encoding of a DNA string of at most MaxKmerLength
// bases. It is not canonical by construction; use Canonical or Kmerizer to
// obtain the canonical representative of a window.
type Kmer uint64

// Invalid is a sentinel returned when a window cannot be encoded (contains a
// base other than A/C/G/T).
const Invalid = Kmer(0xffffffffffffffff)

// kmerAt is both strand encodings of the window starting at offset, plus
// the offset itself. Generalizes fusion/kmer.go's kmersAtPos to the wider
// genotyping pipeline (which doesn't have a paired-read Pos notion).
type kmerAt struct {
	offset                     int
	forward, reverseComplement Kmer
}

// canonical returns the lexicographically smaller of km.forward and
// km.reverseComplement -- the strand-independent identity of a k-mer.
func (km kmerAt) canonical() Kmer {
	if km.forward < km.reverseComplement {
		return km.forward
	}
	return km.reverseComplement
}

func encode(seq string) Kmer {
	var k Kmer
	for i := 0; i < len(seq); i++ {
		b := asciiToBits[seq[i]]
		if b == invalidBaseBits {
			return Invalid
		}
		k = (k << 2) | Kmer(b)
	}
	return k
}

func nextAmbiguous(seq string, from int) int {
	for i := from; i < len(seq); i++ {
		if asciiToBits[seq[i]] == invalidBaseBits {
			return i
		}
	}
	return len(seq)
}

// Kmerizer streams canonical k-mers out of a sequence, one window at a time.
// It is not safe for concurrent use; each worker goroutine owns its own
// Kmerizer (see package counter and package signature).
type Kmerizer struct {
	k      int
	mask   Kmer
	tmp    []byte
	seq    string
	offset int
	cur    kmerAt
	valid  bool
}

// NewKmerizer returns a Kmerizer for k-mers of the given length.
//
// REQUIRES: 0 < k <= MaxKmerLength
func NewKmerizer(k int) *Kmerizer {
	if k <= 0 || k > MaxKmerLength {
		panic(k)
	}
	return &Kmerizer{
		k:    k,
		mask: ^(Kmer(0xffffffffffffffff) << Kmer(k*2)),
	}
}

// Reset rewinds the Kmerizer onto a new sequence.
func (kz *Kmerizer) Reset(seq string) {
	kz.seq = seq
	kz.offset = 0
	kz.valid = false
}

// Scan advances to the next window and reports whether one was found. Windows
// containing a non-ACGT base are skipped.
func (kz *Kmerizer) Scan() bool {
	if kz.valid && kz.offset+kz.k <= len(kz.seq) {
		next := kz.seq[kz.offset+kz.k-1]
		if b := asciiToBits[next]; b != invalidBaseBits {
			kz.cur.offset = kz.offset
			kz.cur.forward = ((kz.cur.forward << 2) | Kmer(b)) & kz.mask
			shift := Kmer(kz.k-1) * 2
			kz.cur.reverseComplement = (kz.cur.reverseComplement >> 2) | (Kmer(asciiToComplementBits[next]) << shift)
			kz.offset++
			return true
		}
	}
	for kz.offset+kz.k <= len(kz.seq) {
		window := kz.seq[kz.offset : kz.offset+kz.k]
		fwd := encode(window)
		if fwd == Invalid {
			kz.offset = nextAmbiguous(kz.seq, kz.offset) + 1
			kz.valid = false
			continue
		}
		simd.ResizeUnsafe(&kz.tmp, kz.k)
		biosimd.ReverseComp8NoValidate(kz.tmp, gunsafe.StringToBytes(window))
		rev := encode(gunsafe.BytesToString(kz.tmp))
		if rev == Invalid {
			panic("reverse complement of a valid window must be valid")
		}
		kz.cur = kmerAt{offset: kz.offset, forward: fwd, reverseComplement: rev}
		kz.offset++
		kz.valid = true
		return true
	}
	kz.valid = false
	return false
}

// Offset returns the 0-based offset of the current window within the
// sequence passed to Reset.
func (kz *Kmerizer) Offset() int { return kz.cur.offset }

// Canonical returns the canonical k-mer for the current window.
func (kz *Kmerizer) Canonical() Kmer { return kz.cur.canonical() }
