package object

import (
	"fmt"
	"hash/maphash"

	"github.com/pyro-lang/pyro/pkg/value"
)

// fnv1a64 hashes bytes with the 64-bit FNV-1a shift-and-add variant,
// spec.md §4.4's default string hash. It is used once per distinct
// string content; the string pool caches the result on the Str object.
func fnv1a64(b []byte) uint64 {
	const offsetBasis uint64 = 14695981039346656037
	const prime uint64 = 1099511628211
	h := offsetBasis
	for _, c := range b {
		h ^= uint64(c)
		h *= prime
	}
	return h
}

var identitySeed = maphash.MakeSeed()

// identityHash hashes objects that have no content-based equality
// (vectors, instances, classes, closures...) by their pointer identity.
// maphash.Bytes over the %p-formatted address is a small indirection to
// avoid reaching for package unsafe just to hash a pointer value.
func identityHash(o value.HeapObject) uint64 {
	return maphash.Bytes(identitySeed, []byte(fmt.Sprintf("%p", o)))
}
