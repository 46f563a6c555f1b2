// libflip7 exposes the Flip 7 engine to foreign callers
//
//	go build -buildmode=c-shared -o libflip7.so ./cmd/libflip7
//
// Every operation takes a JSON request and returns a non-zero handle. The caller
// reads the result with flip7_buffer_len and flip7_buffer_copy and then releases
// it with flip7_free_buffer. Handles are never reused.
package main

/*
#include <stdint.h>
#include <stddef.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"flip7-server/internal/config"
	"flip7-server/pkg/bridge"
	"flip7-server/pkg/registry"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	reg *registry.Registry
	b   *bridge.Bridge
)

func main() {}

// flip7_init prepares the engine; calling it again is a no-op
//
//export flip7_init
func flip7_init() C.int {
	mu.Lock()
	defer mu.Unlock()

	if b != nil {
		return 0
	}

	if lvl, err := logrus.ParseLevel(config.Instance().Log.Level); err == nil {
		logrus.SetLevel(lvl)
	}

	reg = registry.New(logrus.StandardLogger())
	b = bridge.New(logrus.StandardLogger(), reg)
	return 0
}

// flip7_shutdown drops every game and every outstanding buffer
//
//export flip7_shutdown
func flip7_shutdown() {
	mu.Lock()
	defer mu.Unlock()

	if reg != nil {
		reg.Close()
	}

	reg = nil
	b = nil
}

func current() *bridge.Bridge {
	mu.RLock()
	defer mu.RUnlock()

	return b
}

func call(input *C.char, length C.size_t, op func(*bridge.Bridge, []byte) bridge.Handle) C.uint64_t {
	br := current()
	if br == nil {
		return 0
	}

	data := C.GoBytes(unsafe.Pointer(input), C.int(length))
	return C.uint64_t(op(br, data))
}

//export flip7_new_game
func flip7_new_game(input *C.char, length C.size_t) C.uint64_t {
	return call(input, length, (*bridge.Bridge).NewGame)
}

//export flip7_get_state
func flip7_get_state(input *C.char, length C.size_t) C.uint64_t {
	return call(input, length, (*bridge.Bridge).GetState)
}

//export flip7_start_round
func flip7_start_round(input *C.char, length C.size_t) C.uint64_t {
	return call(input, length, (*bridge.Bridge).StartRound)
}

//export flip7_draw
func flip7_draw(input *C.char, length C.size_t) C.uint64_t {
	return call(input, length, (*bridge.Bridge).Draw)
}

//export flip7_stay
func flip7_stay(input *C.char, length C.size_t) C.uint64_t {
	return call(input, length, (*bridge.Bridge).Stay)
}

//export flip7_delete_game
func flip7_delete_game(input *C.char, length C.size_t) C.uint64_t {
	return call(input, length, (*bridge.Bridge).DeleteGame)
}

// flip7_buffer_len returns the size of the buffer, or -1 for an unknown handle
//
//export flip7_buffer_len
func flip7_buffer_len(handle C.uint64_t) C.int64_t {
	br := current()
	if br == nil {
		return -1
	}

	data, err := br.Bytes(bridge.Handle(handle))
	if err != nil {
		return -1
	}

	return C.int64_t(len(data))
}

// flip7_buffer_copy copies up to size bytes into dst and returns the count copied
//
//export flip7_buffer_copy
func flip7_buffer_copy(handle C.uint64_t, dst *C.char, size C.size_t) C.int64_t {
	br := current()
	if br == nil {
		return -1
	}

	data, err := br.Bytes(bridge.Handle(handle))
	if err != nil {
		return -1
	}

	n := len(data)
	if int(size) < n {
		n = int(size)
	}

	if n > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(dst)), n), data[:n])
	}

	return C.int64_t(n)
}

// flip7_free_buffer releases a handle; it returns -1 if it was unknown or already freed
//
//export flip7_free_buffer
func flip7_free_buffer(handle C.uint64_t) C.int {
	br := current()
	if br == nil {
		return -1
	}

	if err := br.Free(bridge.Handle(handle)); err != nil {
		logrus.WithError(err).Warn("could not free buffer")
		return -1
	}

	return 0
}
