package crr

import "testing"

func TestBootstrapAssignsSiteID(t *testing.T) {
	c := openTestConn(t)

	st, err := Bootstrap(c, "")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	var zero [16]byte
	if st.SiteID() == zero {
		t.Fatal("SiteID is all-zero, want a generated uuid")
	}
	if st.Version() != minDBVersion {
		t.Fatalf("Version() = %d, want sentinel minimum on a fresh database", st.Version())
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	c := openTestConn(t)

	first, err := Bootstrap(c, "")
	if err != nil {
		t.Fatalf("first Bootstrap: %v", err)
	}
	second, err := Bootstrap(c, "")
	if err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	if first != second {
		t.Fatal("second Bootstrap returned a different State instance for an already-bootstrapped path")
	}
}

func TestBumpVersionIsMonotonic(t *testing.T) {
	st := &State{}
	st.version.Store(minDBVersion)

	v1 := st.bumpVersion()
	v2 := st.bumpVersion()
	if v2 != v1+1 {
		t.Fatalf("bumpVersion sequence = %d, %d; want consecutive", v1, v2)
	}
}
