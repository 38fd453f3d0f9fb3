package values

import (
	"hash/fnv"
	"math"
	"math/bits"

	"github.com/hivellm/synap/internal/keyspace"
)

// HLL parameters per spec.md §4.B: "register width 6 bits, standard 2^14
// register count".
const (
	hllRegisterBits  = 14
	hllRegisterCount = 1 << hllRegisterBits // 16384
	hllRegisterWidth = 6
	hllAlphaInf      = 0.721347520444481703 // alpha_inf = 1 / (2 * ln 2)
)

func newHLLRegisters() []byte {
	// registers are packed 6 bits each; total bits = count*6, rounded up to bytes.
	return make([]byte, (hllRegisterCount*hllRegisterWidth+7)/8)
}

func hllGetRegister(regs []byte, idx int) uint8 {
	bitPos := idx * hllRegisterWidth
	return uint8(readBits(regs, int64(bitPos), hllRegisterWidth, false))
}

func hllSetRegister(regs []byte, idx int, value uint8) {
	bitPos := idx * hllRegisterWidth
	writeBits(regs, int64(bitPos), hllRegisterWidth, int64(value))
}

// hllHash hashes element into a 64-bit value; the low hllRegisterBits bits
// select the register, the remaining high bits are scanned for leading
// zeroes (spec.md §4.B "update the register at index h[low bits] with the
// leading-zero count of h[high bits]").
func hllHash(element string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(element))
	return h.Sum64()
}

func hllRhoW(w uint64, maxBits int) uint8 {
	// w holds maxBits significant bits; its top 64-maxBits bits are zero.
	return uint8(bits.LeadingZeros64(w) - (64 - maxBits) + 1)
}

// PFAdd hashes each element and updates the HLL register array at key,
// creating it if absent. Returns whether any register changed.
func (o *Ops) PFAdd(guard *keyspace.LockedShardSet, key string, elements ...string) (bool, error) {
	var changed bool
	var opErr error
	o.withLock(guard, key, func(e *keyspace.Entry) *keyspace.Entry {
		if e == nil {
			e = keyspace.NewEntry(keyspace.KindHyperLogLog)
			e.HLL = newHLLRegisters()
		} else if e.Kind != keyspace.KindHyperLogLog {
			opErr = wrongType(key, e.Kind, keyspace.KindHyperLogLog)
			return keyspace.NoChange()
		}
		for _, el := range elements {
			hash := hllHash(el)
			idx := int(hash & (hllRegisterCount - 1))
			rest := hash >> hllRegisterBits
			rank := hllRhoW(rest, 64-hllRegisterBits)
			if cur := hllGetRegister(e.HLL, idx); rank > cur {
				hllSetRegister(e.HLL, idx, rank)
				changed = true
			}
		}
		if !changed {
			return keyspace.NoChange()
		}
		return e
	})
	return changed, opErr
}

// hllEstimate implements the standard HyperLogLog cardinality estimator with
// small-range and large-range bias corrections (spec.md §4.B "PFCOUNT (HLL
// cardinality estimator with small-range and large-range corrections)").
func hllEstimate(regs []byte) uint64 {
	m := float64(hllRegisterCount)
	sum := 0.0
	zeros := 0
	for i := 0; i < hllRegisterCount; i++ {
		r := hllGetRegister(regs, i)
		sum += 1.0 / math.Pow(2, float64(r))
		if r == 0 {
			zeros++
		}
	}
	estimate := hllAlphaInf * m * m / sum

	switch {
	case estimate <= 2.5*m && zeros > 0:
		// small-range correction: linear counting.
		estimate = m * math.Log(m/float64(zeros))
	case estimate > (1.0/30.0)*4294967296.0:
		// large-range correction for 32-bit hash overflow region.
		estimate = -4294967296.0 * math.Log(1-estimate/4294967296.0)
	}
	if estimate < 0 {
		estimate = 0
	}
	return uint64(estimate + 0.5)
}

// PFCount estimates the cardinality of the union of the HLLs at keys. A
// single key returns that key's own estimate; multiple keys are merged
// register-wise first (spec.md §4.B "PFCOUNT").
func (o *Ops) PFCount(keys ...string) (uint64, error) {
	if len(keys) == 1 {
		e := o.KS.Get(keys[0])
		if e == nil {
			return 0, nil
		}
		if e.Kind != keyspace.KindHyperLogLog {
			return 0, wrongType(keys[0], e.Kind, keyspace.KindHyperLogLog)
		}
		return hllEstimate(e.HLL), nil
	}
	merged := newHLLRegisters()
	for _, k := range keys {
		e := o.KS.Get(k)
		if e == nil {
			continue
		}
		if e.Kind != keyspace.KindHyperLogLog {
			return 0, wrongType(k, e.Kind, keyspace.KindHyperLogLog)
		}
		mergeRegisters(merged, e.HLL)
	}
	return hllEstimate(merged), nil
}

func mergeRegisters(dst, src []byte) {
	for i := 0; i < hllRegisterCount; i++ {
		s := hllGetRegister(src, i)
		if s > hllGetRegister(dst, i) {
			hllSetRegister(dst, i, s)
		}
	}
}

// PFMerge computes the register-wise max of the HLLs at srcKeys and stores
// the result at destKey (spec.md §4.B "PFMERGE (register-wise max)").
func (o *Ops) PFMerge(guard *keyspace.LockedShardSet, destKey string, srcKeys ...string) error {
	merged := newHLLRegisters()
	if e := o.getEntry(guard, destKey); e != nil {
		if e.Kind != keyspace.KindHyperLogLog {
			return wrongType(destKey, e.Kind, keyspace.KindHyperLogLog)
		}
		mergeRegisters(merged, e.HLL)
	}
	for _, k := range srcKeys {
		e := o.getEntry(guard, k)
		if e == nil {
			continue
		}
		if e.Kind != keyspace.KindHyperLogLog {
			return wrongType(k, e.Kind, keyspace.KindHyperLogLog)
		}
		mergeRegisters(merged, e.HLL)
	}
	o.upsertEntry(guard, destKey, &keyspace.Entry{Kind: keyspace.KindHyperLogLog, HLL: merged}, 0)
	return nil
}
