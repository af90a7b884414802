package cmap

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMap_BasicOperations(t *testing.T) {
	m := New[string, int]()

	m.Set("a", 1)
	m.Set("b", 2)

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if !m.Has("b") {
		t.Fatal("Has(b) = false, want true")
	}
	if m.Count() != 2 {
		t.Fatalf("Count = %d, want 2", m.Count())
	}

	m.Delete("a")
	if m.Has("a") {
		t.Fatal("Has(a) after Delete = true")
	}

	m.Clear()
	if m.Count() != 0 {
		t.Fatalf("Count after Clear = %d, want 0", m.Count())
	}
}

func TestNewWithShards_InvalidCountFallsBack(t *testing.T) {
	for _, n := range []int{0, -1, 3, 100} {
		m := NewWithShards[string, int](n)
		if len(m.shards) != DefaultShardCount {
			t.Errorf("NewWithShards(%d) shards = %d, want %d", n, len(m.shards), DefaultShardCount)
		}
	}

	m := NewWithShards[string, int](8)
	if len(m.shards) != 8 {
		t.Fatalf("NewWithShards(8) shards = %d, want 8", len(m.shards))
	}
}

func TestMap_SetIfAbsent(t *testing.T) {
	m := New[string, string]()

	if !m.SetIfAbsent("k", "first") {
		t.Fatal("SetIfAbsent on empty map = false")
	}
	if m.SetIfAbsent("k", "second") {
		t.Fatal("SetIfAbsent on existing key = true")
	}
	if v, _ := m.Get("k"); v != "first" {
		t.Fatalf("Get(k) = %q, want first", v)
	}
}

func TestMap_Update(t *testing.T) {
	m := New[string, int]()

	m.Update("n", func(cur int, exists bool) (int, bool) {
		if exists {
			t.Fatal("exists = true for missing key")
		}
		return 10, true
	})
	m.Update("n", func(cur int, _ bool) (int, bool) { return cur + 1, true })
	if v, _ := m.Get("n"); v != 11 {
		t.Fatalf("Get(n) = %d, want 11", v)
	}

	m.Update("n", func(int, bool) (int, bool) { return 0, false })
	if m.Has("n") {
		t.Fatal("key kept after Update returned keep=false")
	}
}

func TestMap_PopExactlyOnce(t *testing.T) {
	m := New[string, int]()
	m.Set("once", 1)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Pop("once"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("Pop succeeded %d times, want 1", wins.Load())
	}
}

func TestMap_PopIf(t *testing.T) {
	m := New[string, int]()
	m.Set("k", 5)

	if _, ok := m.PopIf("k", func(v int) bool { return v > 10 }); ok {
		t.Fatal("PopIf removed value that failed predicate")
	}
	if v, ok := m.PopIf("k", func(v int) bool { return v == 5 }); !ok || v != 5 {
		t.Fatalf("PopIf = %d, %v; want 5, true", v, ok)
	}
	if m.Has("k") {
		t.Fatal("key still present after PopIf")
	}
}

func TestMap_RangeAndCollect(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 100; i++ {
		m.Set("k"+strconv.Itoa(i), i)
	}

	seen := 0
	m.Range(func(string, int) bool {
		seen++
		return true
	})
	if seen != 100 {
		t.Fatalf("Range visited %d, want 100", seen)
	}

	stopped := 0
	m.Range(func(string, int) bool {
		stopped++
		return stopped < 5
	})
	if stopped != 5 {
		t.Fatalf("Range after stop visited %d, want 5", stopped)
	}

	even := m.Collect(func(v int) bool { return v%2 == 0 })
	if len(even) != 50 {
		t.Fatalf("Collect even = %d keys, want 50", len(even))
	}
	if len(m.Keys()) != 100 {
		t.Fatalf("Keys = %d, want 100", len(m.Keys()))
	}
}

func TestMap_ConcurrentAccess(t *testing.T) {
	m := New[string, int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := strconv.Itoa(g) + "-" + strconv.Itoa(i)
				m.Set(key, i)
				m.Get(key)
				if i%3 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	// 500 keys per goroutine, every third (0,3,...,498 => 167) deleted.
	if got, want := m.Count(), 8*(500-167); got != want {
		t.Fatalf("Count = %d, want %d", got, want)
	}
}

func TestShardHash(t *testing.T) {
	tests := []struct {
		key  string
		want uint32
	}{
		{"", 0x00000000},
		{"hello", 0x248bfa47},
		{"hello, world", 0x149bbb7f},
		{"19 Jan 2038 at 3:14:07 AM", 0xe31e8a70},
		{"The quick brown fox jumps over the lazy dog.", 0xd5c48bfc},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			// Twice, so a pooled digest is reused
			for i := 0; i < 2; i++ {
				if got := shardHash(tt.key); got != tt.want {
					t.Fatalf("shardHash(%q) = %#x, want %#x", tt.key, got, tt.want)
				}
			}
		})
	}
}

func TestShardHash_Concurrent(t *testing.T) {
	keys := []string{"a", "ab", "abc", "abcd", "abcde", "sgss-01HZX3Q5V8K2M4N6P8R0T2V4X6"}
	want := make([]uint32, len(keys))
	for i, k := range keys {
		want[i] = shardHash(k)
	}

	var wg sync.WaitGroup
	var mismatches atomic.Int32
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				j := i % len(keys)
				if shardHash(keys[j]) != want[j] {
					mismatches.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if n := mismatches.Load(); n != 0 {
		t.Fatalf("mismatches = %d, want 0", n)
	}
}

func BenchmarkMap_Get(b *testing.B) {
	m := New[string, int]()
	for i := 0; i < 1024; i++ {
		m.Set(strconv.Itoa(i), i)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			m.Get(strconv.Itoa(i & 1023))
			i++
		}
	})
}
