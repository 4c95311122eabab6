package shmregion

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateThenAttachShareState(t *testing.T) {
	creator, err := Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer creator.Close()

	if len(creator.Name()) != nameLength {
		t.Fatalf("expected name length %d, got %d (%q)", nameLength, len(creator.Name()), creator.Name())
	}

	attacher, err := Attach(creator.Name())
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer attacher.Close()

	creator.Buffer().Write().Video[0] = 0x42
	creator.Buffer().DoneWriting()

	attacher.Buffer().AboutToRead()
	if got := attacher.Buffer().Read().Video[0]; got != 0x42 {
		t.Fatalf("expected attacher to observe creator's write, got %d", got)
	}
}

func TestCreatorCloseUnlinksObject(t *testing.T) {
	creator, err := Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	name := creator.Name()

	if err := creator.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(shmDir, name)); !os.IsNotExist(err) {
		t.Fatalf("expected backing object to be unlinked, stat err = %v", err)
	}
}

func TestAttacherCloseDoesNotUnlink(t *testing.T) {
	creator, err := Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer creator.Close()

	attacher, err := Attach(creator.Name())
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := attacher.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(shmDir, creator.Name())); err != nil {
		t.Fatalf("expected backing object to survive attacher Close, stat err = %v", err)
	}
}
