package rgssad

import "testing"

func TestKeystreamFirstSixKeys(t *testing.T) {
	want := []uint32{0xDEADCAFE, 0x16C08CF5, 0x9F43DAB6, 0x5ADAFAFD, 0x7BFCDCEE, 0x63EA0A85}
	k := NewKeystream(defaultMetadataSeed)
	for i := 0; i < 6; i++ {
		got := k.Next()
		if got != want[i] {
			t.Fatalf("key %d: got 0x%08x, want 0x%08x", i, got, want[i])
		}
	}
	// Cross-check the second key against the recurrence directly.
	k2 := NewKeystream(defaultMetadataSeed)
	k2.Next()
	second := k2.Next()
	seed := uint32(defaultMetadataSeed)
	if want := seed*lcgMultiplier + lcgIncrement; second != want {
		t.Fatalf("second key: got 0x%08x, want 0x%08x", second, want)
	}
}

func TestModInverseOfSeven(t *testing.T) {
	im := modInverse32(7)
	if got := uint32(7) * im; got != 1 {
		t.Fatalf("7 * inverse(7) = 0x%08x, want 1", got)
	}
	if im != 0xB6DB6DB7 {
		t.Fatalf("inverse(7) = 0x%08x, want 0xB6DB6DB7", im)
	}
}

func TestSkipMatchesRepeatedNext(t *testing.T) {
	seeds := []uint32{0, 1, 0xDEADCAFE, 0xFFFFFFFF, 12345}
	ns := []uint64{0, 1, 2, 3, 17, 1000, 1 << 16, 1<<20 - 1}
	for _, seed := range seeds {
		for _, n := range ns {
			slow := NewKeystream(seed)
			for i := uint64(0); i < n; i++ {
				slow.Next()
			}
			fast := NewKeystream(seed)
			fast.Skip(n)
			if slow.Key() != fast.Key() {
				t.Fatalf("seed=0x%x n=%d: repeated Next() -> 0x%08x, Skip(n) -> 0x%08x", seed, n, slow.Key(), fast.Key())
			}
		}
	}
}

func TestResetSkipRewindRoundtrip(t *testing.T) {
	seeds := []uint32{0, 1, 0xDEADCAFE, 0xFFFFFFFF}
	ns := []uint64{0, 1, 2, 100, 1 << 20}
	for _, seed := range seeds {
		for _, n := range ns {
			k := NewKeystream(seed)
			k.Reset()
			k.Skip(n)
			k.Rewind(n)
			if k.Key() != seed {
				t.Fatalf("seed=0x%x n=%d: reset;skip;rewind -> 0x%08x, want 0x%08x", seed, n, k.Key(), seed)
			}
		}
	}
}

func TestSkipIsAdditive(t *testing.T) {
	a, b := uint64(37), uint64(4096)
	k1 := NewKeystream(0xDEADCAFE)
	k1.Skip(a)
	k1.Skip(b)

	k2 := NewKeystream(0xDEADCAFE)
	k2.Skip(a + b)

	if k1.Key() != k2.Key() {
		t.Fatalf("skip(a);skip(b) = 0x%08x, skip(a+b) = 0x%08x", k1.Key(), k2.Key())
	}
}

func TestRollbackUndoesNext(t *testing.T) {
	k := NewKeystream(0xDEADCAFE)
	before := k.Key()
	k.Next()
	k.Rollback()
	if k.Key() != before {
		t.Fatalf("rollback after Next() = 0x%08x, want 0x%08x", k.Key(), before)
	}
}

func TestStaticKeystreamNeverAdvances(t *testing.T) {
	k := newStaticKeystream(0xCAFEBABE)
	for i := 0; i < 5; i++ {
		if got := k.Next(); got != 0xCAFEBABE {
			t.Fatalf("static keystream Next() #%d = 0x%08x, want 0xCAFEBABE", i, got)
		}
	}
	k.Skip(1000)
	k.Rollback()
	k.Reset()
	if k.Key() != 0xCAFEBABE {
		t.Fatalf("static keystream mutated: 0x%08x", k.Key())
	}
}
