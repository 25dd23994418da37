package datalib

import "fmt"

// KZA identifies a nuclide: (Z*1000+A)*10+M, where Z is atomic number, A is
// mass number, and M is the isomeric state (0 for ground state).
type KZA int32

// NewKZA builds a KZA from its atomic number, mass number, and isomer level.
func NewKZA(z, a, m int) KZA {
	return KZA((z*1000+a)*10 + m)
}

// Z returns the atomic number encoded in the KZA.
func (k KZA) Z() int { return int(k) / 10000 }

// A returns the mass number encoded in the KZA.
func (k KZA) A() int { return (int(k) / 10) % 1000 }

// M returns the isomeric state encoded in the KZA.
func (k KZA) M() int { return int(k) % 10 }

// BaseZA returns the KZA with its isomer digit stripped, i.e. (Z*1000+A)*10.
// The binary index is sorted on this value because isomers of the same
// nuclide are rare enough that a linear scan of the neighbourhood resolves
// them faster than widening every comparison.
func (k KZA) BaseZA() int32 {
	return (int32(k) / 10) * 10
}

func (k KZA) String() string {
	return fmt.Sprintf("KZA(%d)", int32(k))
}
