package kv

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MePride/pin/internal/errs"
)

func openTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := OpenFile(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	return s
}

func TestPutGetErase(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put("canvas", "3", []byte(`{"id":3}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get("canvas", "3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff([]byte(`{"id":3}`), got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	// Put replaces.
	if err := s.Put("canvas", "3", []byte(`{"id":3,"name":"x"}`)); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	got, _ = s.Get("canvas", "3")
	if string(got) != `{"id":3,"name":"x"}` {
		t.Errorf("Get after replace = %q", got)
	}

	if err := s.Erase("canvas", "3"); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if _, err := s.Get("canvas", "3"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get after Erase = %v, want ErrNotFound", err)
	}
	if err := s.Erase("canvas", "3"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("double Erase = %v, want ErrNotFound", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get("canvas", "nope"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestKeysSortedAndNamespaced(t *testing.T) {
	s := openTestStore(t)

	for _, k := range []string{"9", "1", "20"} {
		if err := s.Put("canvas", k, []byte("x")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := s.Put("images", "7", []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	keys, err := s.Keys("canvas")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if diff := cmp.Diff([]string{"1", "20", "9"}, keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}

	empty, err := s.Keys("missing")
	if err != nil {
		t.Fatalf("Keys on absent namespace: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Keys on absent namespace = %v, want empty", empty)
	}
}

func TestRejectsPathEscapes(t *testing.T) {
	s := openTestStore(t)
	for _, tc := range []struct{ ns, key string }{
		{"..", "x"},
		{"canvas", ".."},
		{"a/b", "x"},
		{"canvas", "a/../../b"},
		{"", "x"},
		{"canvas", ""},
		{"canvas", "x.tmp"},
	} {
		if err := s.Put(tc.ns, tc.key, []byte("x")); !errors.Is(err, errs.ErrInvalidArgument) {
			t.Errorf("Put(%q,%q) = %v, want ErrInvalidArgument", tc.ns, tc.key, err)
		}
	}
}
