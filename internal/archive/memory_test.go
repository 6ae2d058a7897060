package archive

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// storeContract runs the behavior every Store must share.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		data := "FULL_PATH,FILE_SIZE\n/a,1\n"
		if err := s.Put(ctx, "h1/r1/snapshot.csv", strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		var buf bytes.Buffer
		if err := s.Get(ctx, "h1/r1/snapshot.csv", &buf); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("Get() = %q, want %q", buf.String(), data)
		}
	})

	t.Run("put replaces", func(t *testing.T) {
		s := newStore(t)
		for _, data := range []string{"first", "second"} {
			if err := s.Put(ctx, "h1/r1/snapshot.csv", strings.NewReader(data), int64(len(data))); err != nil {
				t.Fatal(err)
			}
		}
		var buf bytes.Buffer
		if err := s.Get(ctx, "h1/r1/snapshot.csv", &buf); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "second" {
			t.Errorf("Get() = %q, want second", buf.String())
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		s := newStore(t)
		if err := s.Put(ctx, "h1/r1/snapshot.csv", strings.NewReader("abc"), 10); err == nil {
			t.Error("Put() expected size mismatch error")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		err := s.Get(ctx, "h1/nope/snapshot.csv", &bytes.Buffer{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list by prefix", func(t *testing.T) {
		s := newStore(t)
		for _, key := range []string{"h1/r2/snapshot.csv", "h1/r1/snapshot.csv.age", "h10/r1/snapshot.csv", "h2/r1/snapshot.csv"} {
			if err := s.Put(ctx, key, strings.NewReader("x"), 1); err != nil {
				t.Fatal(err)
			}
		}

		got, err := s.List(ctx, "h1/")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		want := []string{"h1/r1/snapshot.csv.age", "h1/r2/snapshot.csv"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("List() = %v, want %v", got, want)
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		if err := newStore(t).ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return NewMemoryStore("mem") })
}

func TestMemoryStore_Name(t *testing.T) {
	if got := NewMemoryStore("offsite").Name(); got != "offsite" {
		t.Errorf("Name() = %q, want offsite", got)
	}
}
