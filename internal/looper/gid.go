package looper

import "runtime"

// currentGoroutineID extracts the calling goroutine's ID from the stack
// trace header ("goroutine 123 [running]:"). The header format has been
// stable across runtime versions, and the runtime offers no cheaper way to
// ask "which goroutine am I" for an executor check.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	const prefix = "goroutine "
	if n <= len(prefix) {
		return 0
	}

	var id uint64
	for _, c := range buf[len(prefix):n] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
