//go:build unix

package vktest

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Vulkan handle types are not-in-heap pointers, so reflect refuses them when
// they point into the Go heap. Handles are carved out of anonymous mappings
// instead and are never reused.
const (
	handleSize = 8
	chunkSize  = 64 << 10
)

var handles struct {
	mu     sync.Mutex
	chunks [][]byte
	next   int
}

// newHandle returns an address no other handle in the process shares.
func newHandle() unsafe.Pointer {
	handles.mu.Lock()
	defer handles.mu.Unlock()
	if len(handles.chunks) == 0 || handles.next == chunkSize {
		chunk, err := unix.Mmap(-1, 0, chunkSize, unix.PROT_READ, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			panic(fmt.Sprintf("vktest: map handle arena: %s", err))
		}
		// Keep the mapping referenced for the life of the process.
		handles.chunks = append(handles.chunks, chunk)
		handles.next = 0
	}
	chunk := handles.chunks[len(handles.chunks)-1]
	p := unsafe.Pointer(&chunk[handles.next])
	handles.next += handleSize
	return p
}
