// Package shmregion manages the named POSIX shared-memory objects that
// back a triple buffer: create, attach, and destroy, per §4.C.
//
// The creator is the unique destroyer (RAII-scoped: Close on the Region
// returned by Create unlinks the backing object); an attacher's Close
// only unmaps and closes its own file descriptor, per the attach-er-never-
// destroys contract. Mapping uses golang.org/x/sys/unix rather than the
// bare syscall package the retrieval pack's shared-memory examples use
// directly, for its richer flag surface — the mmap/munmap call shape is
// otherwise identical to those examples.
package shmregion

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/patchbay/patchbay/internal/shmbuf"
	"golang.org/x/sys/unix"
)

// nameAlphabet is the character set for the 32-character region name,
// per §4.C step 1: "[A-Za-z]".
const nameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// nameLength is the fixed length of a generated region name.
const nameLength = 32

// maxCreateAttempts bounds the create-exclusive retry loop on name
// collision (step 2: "if the name collides, regenerate").
const maxCreateAttempts = 8

// shmDir is where named shared-memory objects live. /dev/shm is the
// POSIX-shm-backed tmpfs on Linux; on hosts without it, TempDir is an
// acceptable same-host substitute, since §6 explicitly does not require
// cross-platform shareability.
var shmDir = defaultShmDir()

func defaultShmDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// Region is a mapping of a named shared-memory object sized to exactly
// one shmbuf.TripleBuffer.
type Region struct {
	name  string
	f     *os.File
	data  []byte
	buf   *shmbuf.TripleBuffer
	owner bool
}

// randomName generates a nameLength-character name drawn from
// nameAlphabet.
func randomName() (string, error) {
	raw := make([]byte, nameLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("shmregion: generate name: %w", err)
	}
	out := make([]byte, nameLength)
	for i, b := range raw {
		out[i] = nameAlphabet[int(b)%len(nameAlphabet)]
	}
	return string(out), nil
}

// Create generates a fresh region name, creates the backing object
// exclusively, sizes it to one TripleBuffer, maps it read/write, and
// in-place constructs a TripleBuffer at the mapping's base address. The
// returned Region owns the object: Close destroys the buffer, unmaps,
// and unlinks it.
func Create() (*Region, error) {
	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		name, err := randomName()
		if err != nil {
			return nil, err
		}

		path := filepath.Join(shmDir, name)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("shmregion: create %s: %w", name, err)
		}

		region, err := mapNewFile(name, f)
		if err != nil {
			f.Close()
			os.Remove(path)
			return nil, err
		}
		return region, nil
	}
	return nil, fmt.Errorf("shmregion: exhausted %d name-collision retries: %w", maxCreateAttempts, lastErr)
}

func mapNewFile(name string, f *os.File) (*Region, error) {
	if err := f.Truncate(int64(shmbuf.Size)); err != nil {
		return nil, fmt.Errorf("shmregion: truncate %s: %w", name, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, shmbuf.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shmregion: mmap %s: %w", name, err)
	}

	buf := (*shmbuf.TripleBuffer)(unsafe.Pointer(&data[0]))
	buf.Init()

	return &Region{name: name, f: f, data: data, buf: buf, owner: true}, nil
}

// Attach opens an existing named region read/write and treats the
// mapping as an already-constructed TripleBuffer. The returned Region
// never destroys the backing object.
func Attach(name string) (*Region, error) {
	path := filepath.Join(shmDir, name)
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shmregion: attach %s: %w", name, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, shmbuf.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmregion: mmap %s: %w", name, err)
	}

	buf := (*shmbuf.TripleBuffer)(unsafe.Pointer(&data[0]))
	return &Region{name: name, f: f, data: data, buf: buf, owner: false}, nil
}

// Name returns the region's 32-character name.
func (r *Region) Name() string {
	return r.name
}

// Buffer returns the TripleBuffer backed by this mapping.
func (r *Region) Buffer() *shmbuf.TripleBuffer {
	return r.buf
}

// Close unmaps the region. If this Region was returned by Create, it
// also unlinks the backing object; failures to unlink are reported but
// non-fatal to the unmap/close path, per §4.C step 6.
func (r *Region) Close() error {
	var firstErr error
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			firstErr = fmt.Errorf("shmregion: munmap %s: %w", r.name, err)
		}
		r.data = nil
	}
	if err := r.f.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shmregion: close %s: %w", r.name, err)
	}
	if r.owner {
		if err := os.Remove(filepath.Join(shmDir, r.name)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("shmregion: unlink %s: %w", r.name, err)
		}
	}
	return firstErr
}
