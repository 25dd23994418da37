package ratecache

import (
	"reflect"
	"testing"
)

// TestStressInsertBeyondCapacityKeepsOnlyLastTouched inserts 128 distinct
// KZAs, in a shuffled order, into a cache of capacity 64, and checks that
// exactly the 64 most recently touched remain while the other 64 miss.
func TestStressInsertBeyondCapacityKeepsOnlyLastTouched(t *testing.T) {
	const capacity = 64
	const n = 128
	c := New(capacity)

	order := make([]int32, n)
	for i := range order {
		order[i] = int32(i)
	}
	// A fixed, deterministic permutation (no math/rand: reproducible
	// without seeding) so insertion order isn't just ascending KZA.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	shuffled := make([]int32, 0, n)
	for i := 0; i < n; i += 2 {
		shuffled = append(shuffled, order[i])
	}
	for i := 1; i < n; i += 2 {
		shuffled = append(shuffled, order[i])
	}

	for _, kza := range shuffled {
		c.Set(kza, 1, 0, float64(kza))
	}

	if c.Size() != capacity {
		t.Fatalf("size = %d, want %d", c.Size(), capacity)
	}

	lastTouched := make(map[int32]bool, capacity)
	for _, kza := range shuffled[n-capacity:] {
		lastTouched[kza] = true
	}

	for kza := int32(0); kza < n; kza++ {
		_, ok := c.Read(kza, 0)
		if lastTouched[kza] && !ok {
			t.Errorf("kza %d should still be cached, missed", kza)
		}
		if !lastTouched[kza] && ok {
			t.Errorf("kza %d should have been evicted, hit", kza)
		}
	}
}

func TestReadMiss(t *testing.T) {
	c := New(4)
	if _, ok := c.Read(10010, 0); ok {
		t.Fatalf("expected miss on empty cache")
	}
}

func TestSetThenRead(t *testing.T) {
	c := New(4)
	c.Set(260560, 3, 1, 1.5e-9)
	rate, ok := c.Read(260560, 1)
	if !ok {
		t.Fatalf("expected hit after Set")
	}
	if rate != 1.5e-9 {
		t.Fatalf("got rate %v, want 1.5e-9", rate)
	}
	if rate, ok := c.Read(260560, 0); !ok || rate != 0 {
		t.Fatalf("unset channel should read back as zero, got %v ok=%v", rate, ok)
	}
}

func TestUpdateExistingChannel(t *testing.T) {
	c := New(4)
	c.Set(260560, 2, 0, 1.0)
	c.Set(260560, 2, 0, 2.0)
	if c.Size() != 1 {
		t.Fatalf("update of existing kza should not grow the cache, size=%d", c.Size())
	}
	if rate, _ := c.Read(260560, 0); rate != 2.0 {
		t.Fatalf("got %v, want updated rate 2.0", rate)
	}
}

func TestSortedInvariant(t *testing.T) {
	c := New(8)
	kzas := []int32{260570, 260550, 260560, 10010, 922350, 922380}
	for _, k := range kzas {
		c.Set(k, 1, 0, float64(k))
	}
	got := append([]int32(nil), c.sortedKza[:c.size]...)
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("sorted array not strictly increasing: %v", got)
		}
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Set(1, 1, 0, 1)
	c.Set(2, 1, 0, 2)
	// touch 1 so 2 becomes the LRU victim
	c.Read(1, 0)
	c.Set(3, 1, 0, 3)

	if _, ok := c.Read(2, 0); ok {
		t.Fatalf("kza 2 should have been evicted")
	}
	if _, ok := c.Read(1, 0); !ok {
		t.Fatalf("kza 1 should still be cached")
	}
	if _, ok := c.Read(3, 0); !ok {
		t.Fatalf("kza 3 should be cached after insert")
	}
	if c.Size() != 2 {
		t.Fatalf("cache should remain at capacity, size=%d", c.Size())
	}
}

func TestMRUOrderReflectsRecency(t *testing.T) {
	c := New(3)
	c.Set(1, 1, 0, 1)
	c.Set(2, 1, 0, 2)
	c.Set(3, 1, 0, 3)
	c.Read(1, 0)

	want := []int32{1, 3, 2}
	if got := c.MRUOrder(); !reflect.DeepEqual(got, want) {
		t.Fatalf("MRUOrder() = %v, want %v", got, want)
	}
}

func TestCapacityDefaultsWhenNonPositive(t *testing.T) {
	c := New(0)
	if c.Capacity() != DefaultCapacity {
		t.Fatalf("Capacity() = %d, want default %d", c.Capacity(), DefaultCapacity)
	}
}

func TestEvictionPreservesSortOrderAndCount(t *testing.T) {
	c := New(3)
	kzas := []int32{50, 10, 40, 20, 30, 60}
	for _, k := range kzas {
		c.Set(k, 1, 0, float64(k))
	}
	if c.Size() != 3 {
		t.Fatalf("size = %d, want 3", c.Size())
	}
	got := append([]int32(nil), c.sortedKza[:c.size]...)
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("sorted array not strictly increasing after eviction: %v", got)
		}
	}
}
