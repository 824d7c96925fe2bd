package bloom

import "testing"

func TestSize_CommonCases(t *testing.T) {
	// n=1, p=1% → m≈10, k≈7
	m, k := Size(1, 0.01)
	if m < 10 || k != 7 {
		t.Fatalf("n=1,p=0.01: got m=%d k=%d; want m>=10 k=7", m, k)
	}

	// the default domain whitelist capacity
	m, k = Size(10_485_760, 0.01)
	if m < 100_000_000 || m > 101_000_000 {
		t.Fatalf("n=10Mi,p=0.01: unexpected m=%d", m)
	}
	if k != 7 {
		t.Fatalf("n=10Mi,p=0.01: k=%d; want 7", k)
	}

	m, k = Size(10_000, 0.5)
	if k != 1 || m == 0 {
		t.Fatalf("p=0.5: m=%d k=%d; want m>=1 k=1", m, k)
	}
}

func TestSize_ClampingAndDefaults(t *testing.T) {
	m, k := Size(0, 0)
	if m == 0 || k == 0 {
		t.Fatalf("n=0,p=0: expected m>=1 and k>=1; got m=%d k=%d", m, k)
	}
	m2, k2 := Size(100, 1.0)
	m3, k3 := Size(100, 0.01)
	if m2 != m3 || k2 != k3 {
		t.Fatalf("p>=1 should default to 0.01: got m=%d k=%d want m=%d k=%d", m2, k2, m3, k3)
	}
}
