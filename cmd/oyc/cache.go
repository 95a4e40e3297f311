package main

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/oyc-lang/oyc/internal/bytecode"
	"github.com/oyc-lang/oyc/internal/compiler"
	"github.com/oyc-lang/oyc/internal/lexer"
	"github.com/oyc-lang/oyc/internal/parser"
)

// requireCache warms an on-disk, content-addressed store of require()d
// scripts' compiled bytecode as a side effect of running a script. It does
// not change what the VM does with require() in this process — the VM's
// Loader always hands back source text and the VM always compiles it
// itself — the cache exists so a separate tool can load a require()
// target's bytecode from disk with bytecode.UnmarshalModule instead of
// recompiling it. Nothing in this program reads the cache back.
type requireCache struct {
	dir string
}

func openRequireCache() (*requireCache, error) {
	dir := filepath.Join(os.TempDir(), "oyc-require-cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &requireCache{dir: dir}, nil
}

func (c *requireCache) Close() error { return nil }

// wrap returns a Loader that still hands back raw source (the VM compiles
// every require() target itself), but primes the on-disk cache entry for
// it; no code path in this program loads those entries. The cache is
// content-addressed: a byte-for-byte identical script always hits
// regardless of its path.
func (c *requireCache) wrap(load func(string) (string, error)) func(string) (string, error) {
	return func(path string) (string, error) {
		src, err := load(path)
		if err != nil {
			return "", err
		}
		go c.prime(path, src)
		return src, nil
	}
}

func (c *requireCache) prime(source, src string) {
	key := contentKey(src)
	entryPath := filepath.Join(c.dir, key+".msgpack")
	if _, err := os.Stat(entryPath); err == nil {
		return // already cached
	}
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	if len(p.Errors()) > 0 {
		return
	}
	mod, err := compiler.Compile(prog, source)
	if err != nil {
		return
	}
	data, err := bytecode.MarshalModule(mod)
	if err != nil {
		return
	}
	_ = os.WriteFile(entryPath, data, 0o644)
}

func contentKey(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}
