// Package fingerprint implements the probabilistic set of 64-bit
// fingerprints described in spec.md §4.2: a two-level dir/file hash used to
// cheaply ask "does anything under this directory matter?" before doing
// per-file work, with a false-negative-free, false-positive-bounded
// membership test.
//
// There is no original_source file to ground the set algorithm itself on
// (original_source/depfiles.c only keeps usefulFile1); the open-addressing
// set and the two-level seeding scheme follow spec.md §3/§4.2 directly.
package fingerprint

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// loadFactor bounds the set's fill ratio before it grows.
const loadFactor = 0.8

// Set is a growable hash set of 64-bit fingerprints.
//
// The zero Set is not usable; construct one with New. A Set is not
// safe for concurrent use — genbasedir's pipeline is single-threaded
// (spec.md §5).
type Set struct {
	seed    uint64
	buckets []uint64 // 0 is the empty marker; real fingerprints that hash to 0 are remapped to 1
	count   int
}

// metrics are process-wide (there is exactly one Set per run) Prometheus
// counters, matching spec.md §9's open question about surfacing the FP
// rate: this can't measure true false positives (that needs the full
// dependency closure, which genbasedir never computes), but it exposes
// Contains traffic so an operator can at least see CHECK-directory churn.
var (
	containsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "genbasedir",
		Subsystem: "fingerprint",
		Name:      "contains_total",
		Help:      "Calls to Set.Contains, bucketed by outcome.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(containsTotal)
}

// New creates an empty Set, drawing its hash seed once from the OS's
// randomness source. The seed is never exposed: per spec.md §4.2,
// randomised seeding defeats deliberate collision construction, and
// re-running the process re-samples the seed if a false positive ever
// harmed correctness.
func New() *Set {
	var seedBuf [8]byte
	if _, err := rand.Read(seedBuf[:]); err != nil {
		// crypto/rand failing is a fatal condition for the process, not
		// something this package should paper over with a weaker fallback.
		panic("fingerprint: crypto/rand unavailable: " + err.Error())
	}
	return &Set{
		seed:    binary.LittleEndian.Uint64(seedBuf[:]),
		buckets: make([]uint64, 16),
	}
}

// hash computes h(data, len, seed) using xxhash in place of the source's
// t1ha1 — spec.md §4.2 allows "any fast 64-bit hash with strong seeding".
func hash(data []byte, seed uint64) uint64 {
	d := xxhash.NewWithSeed(seed)
	d.Write(data)
	v := d.Sum64()
	if v == 0 {
		v = 1 // 0 is the set's empty-bucket marker
	}
	return v
}

// DirFP computes the directory-level fingerprint for dir (which must
// include its trailing slash).
func (s *Set) DirFP(dir string) uint64 {
	return hash([]byte(dir), s.seed)
}

// FileFP computes the (dir, basename) fingerprint, using dirFP as the seed
// for the basename hash — this is the "two-level lookup" from spec.md §4.3.
func FileFP(dirFP uint64, basename string) uint64 {
	return hash([]byte(basename), dirFP)
}

// Add inserts fp into the set.
func (s *Set) Add(fp uint64) {
	if fp == 0 {
		fp = 1
	}
	if float64(s.count+1) > loadFactor*float64(len(s.buckets)) {
		s.grow()
	}
	s.insert(fp)
}

func (s *Set) insert(fp uint64) {
	mask := uint64(len(s.buckets) - 1)
	i := fp & mask
	for {
		if s.buckets[i] == 0 {
			s.buckets[i] = fp
			s.count++
			return
		}
		if s.buckets[i] == fp {
			return // already present
		}
		i = (i + 1) & mask
	}
}

func (s *Set) grow() {
	old := s.buckets
	s.buckets = make([]uint64, len(old)*2)
	n := s.count
	s.count = 0
	for _, fp := range old {
		if fp != 0 {
			s.insert(fp)
		}
	}
	s.count = n
}

// Contains tests approximate membership of fp. False positives are
// possible (bounded by the load factor and hash width); false negatives
// are not.
func (s *Set) Contains(fp uint64) bool {
	if fp == 0 {
		fp = 1
	}
	mask := uint64(len(s.buckets) - 1)
	i := fp & mask
	for {
		switch s.buckets[i] {
		case 0:
			containsTotal.WithLabelValues("miss").Inc()
			return false
		case fp:
			containsTotal.WithLabelValues("hit").Inc()
			return true
		}
		i = (i + 1) & mask
	}
}

// Len reports the number of distinct fingerprints stored.
func (s *Set) Len() int { return s.count }
