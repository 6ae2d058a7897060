package archive

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestFileSystemStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		s, err := NewFileSystemStore("local", "/archive", afero.NewMemMapFs())
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		return s
	})
}

func TestFileSystemStore_Layout(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := NewFileSystemStore("local", "/archive", fsys)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Put(context.Background(), "h1/r1/snapshot.csv", strings.NewReader("data"), 4); err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(fsys, "/archive/h1/r1/snapshot.csv"); !ok {
		t.Error("object not stored at <root>/<key>")
	}
	tmps, _ := afero.Glob(fsys, "/archive/h1/r1/.tmp-*")
	if len(tmps) != 0 {
		t.Errorf("temp files left behind: %v", tmps)
	}
}

func TestFileSystemStore_RejectsEscapingKeys(t *testing.T) {
	s, err := NewFileSystemStore("local", "/archive", afero.NewMemMapFs())
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"../etc/passwd", "h1/../../x", "", "h1//r1"} {
		if err := s.Put(context.Background(), key, strings.NewReader("x"), 1); err == nil {
			t.Errorf("Put(%q) expected error", key)
		}
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	fsys := afero.NewMemMapFs()
	s, err := NewFileSystemStore("local", "/archive", fsys)
	if err != nil {
		t.Fatal(err)
	}
	if err := fsys.RemoveAll("/archive"); err != nil {
		t.Fatal(err)
	}
	if err := s.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error for missing root")
	}
}
