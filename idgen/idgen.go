// Package idgen provides pluggable ID generation.
//
// Constructors across the repo (run journal, pipeline runner, HTTP trace
// middleware) accept a Generator, making the ID strategy a startup-time
// decision rather than a compile-time one.
package idgen

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Short, URL-safe, fast. Use where UUIDv7 is too verbose (HTTP trace IDs,
// export artifact stamp tails).
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		b := make([]byte, length)
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range b {
			b[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(b)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings,
// time-sortable and globally unique. Run IDs in the journal use these so
// listing by ID follows creation order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID,
// for type-scoped identifiers ("run_", "trc_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Timestamped returns a Generator producing "20060102T150405Z_<suffix>"
// IDs. Export artifacts are named with these: sortable by creation time,
// and the random tail keeps same-second runs from colliding.
func Timestamped(gen Generator) Generator {
	return func() string {
		return time.Now().UTC().Format("20060102T150405Z") + "_" + gen()
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()
