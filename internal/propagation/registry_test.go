package propagation

import (
	"errors"
	"testing"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry[string]()

	a := r.Load("a")
	b := r.Load("b")
	if a == b {
		t.Fatalf("duplicate key %d", a)
	}
	if v, err := r.Get(b); err != nil || v != "b" {
		t.Errorf("Get(b) = %q, %v", v, err)
	}

	if err := r.Update(a, func(s string) (string, error) { return s + "!", nil }); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.Get(a); v != "a!" {
		t.Errorf("after Update: %q", v)
	}

	if err := r.Release(a); err != nil {
		t.Fatal(err)
	}
	if err := r.Release(a); !errors.Is(err, ErrResourceBinding) {
		t.Errorf("double release: err = %v", err)
	}
	if _, err := r.Get(a); !errors.Is(err, ErrResourceBinding) {
		t.Errorf("Get released: err = %v", err)
	}
	if err := r.Update(a, func(s string) (string, error) { return s, nil }); !errors.Is(err, ErrResourceBinding) {
		t.Errorf("Update released: err = %v", err)
	}

	if c := r.Load("c"); c == a {
		t.Error("released key reused")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}
