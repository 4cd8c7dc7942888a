package object

import "github.com/pyro-lang/pyro/pkg/value"

// Str is an immutable, interned byte string. Pointer equality between
// two *Str implies content equality (spec.md §3's invariant); the only
// way to obtain a *Str is through a Pool, which enforces that.
type Str struct {
	Header
	Bytes []byte
	Hash  uint64
}

func (s *Str) Kind() value.ObjKind  { return value.ObjStr }
func (s *Str) ObjHeader() *Header   { return &s.Header }
func (s *Str) String() string       { return string(s.Bytes) }
func (s *Str) Len() int             { return len(s.Bytes) }

// Pool is the process-wide interning table keyed by content hash,
// spec.md §4.4. It holds at most one Str per distinct byte content.
type Pool struct {
	buckets map[uint64][]*Str
}

// NewPool creates an empty string pool.
func NewPool() *Pool {
	return &Pool{buckets: make(map[uint64][]*Str)}
}

// Intern returns the canonical *Str for the given bytes, allocating a
// new one via newObj only on the first sighting of that content. newObj
// is the caller's allocation choke-point (pkg/vm routes every
// allocation through the VM's accountant); Intern never allocates a Str
// directly so the GC bookkeeping stays centralized.
func (p *Pool) Intern(bytes []byte, newObj func(size int64) *Str) *Str {
	h := fnv1a64(bytes)
	for _, cand := range p.buckets[h] {
		if string(cand.Bytes) == string(bytes) {
			return cand
		}
	}
	s := newObj(int64(len(bytes)))
	s.Bytes = append([]byte(nil), bytes...)
	s.Hash = h
	p.buckets[h] = append(p.buckets[h], s)
	return s
}

// InternString is a convenience wrapper over Intern for Go strings.
func (p *Pool) InternString(str string, newObj func(size int64) *Str) *Str {
	return p.Intern([]byte(str), newObj)
}

// Remove drops a Str from the pool; called by the collector's sweep
// phase when an interned string becomes unreachable.
func (p *Pool) Remove(s *Str) {
	bucket := p.buckets[s.Hash]
	for i, cand := range bucket {
		if cand == s {
			p.buckets[s.Hash] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// Count reports how many distinct strings are currently interned, for
// diagnostics and tests.
func (p *Pool) Count() int {
	n := 0
	for _, bucket := range p.buckets {
		n += len(bucket)
	}
	return n
}
