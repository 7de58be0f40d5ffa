// Package id provides identifier generation for bridges and their transports.
//
// Bridge instances get prefixed ULIDs: lexicographically sortable, so log
// lines from successive bridge generations order naturally. Transport
// connections get prefixed UUIDv7 values, which are time ordered as well and
// are what reverse proxies and browser tooling expect to see in headers.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// BridgeID identifies one bridge instance.
type BridgeID string

// ConnectionID identifies one transport connection.
type ConnectionID string

const (
	BridgePrefix     = "brg"
	ConnectionPrefix = "conn"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewBridgeID generates a new bridge instance ID
func NewBridgeID() BridgeID {
	return BridgeID(Default().GenerateWithPrefix(BridgePrefix))
}

// NewConnectionID generates a new connection ID. It falls back to a random
// (v4) UUID if the clock-based variant cannot be produced.
func NewConnectionID() ConnectionID {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return ConnectionID(ConnectionPrefix + "_" + u.String())
}

func (id BridgeID) String() string     { return string(id) }
func (id ConnectionID) String() string { return string(id) }

// Timestamp extracts the creation time from a bridge ID.
func (id BridgeID) Timestamp() (time.Time, error) {
	raw := strings.TrimPrefix(string(id), BridgePrefix+"_")
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
