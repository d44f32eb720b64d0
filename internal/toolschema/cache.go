package toolschema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openbridge/messages-gemini-proxy/internal/gemini"
	"github.com/openbridge/messages-gemini-proxy/internal/messages"
)

const defaultCacheSize = 256

// Cache validates and converts tool sets, memoizing the constructed
// upstream []gemini.Tool by a content hash of the input. Per §4.6 this is a
// two-level cache: a size-one "last hash" check (the overwhelmingly common
// case — consecutive requests in the same conversation carry an identical
// tool set) before falling through to the bounded hashmap.
//
// Safe for concurrent use: the last-hash fast path and the LRU both guard
// their state with their own lock, matching §5's "thread-safe concurrent
// container with per-key atomicity" requirement for the schema cache.
type Cache struct {
	mu        sync.Mutex
	lastHash  string
	lastTools []gemini.Tool

	lru *lru.Cache[string, []gemini.Tool]
}

// New builds a Cache bounded at size entries (defaultCacheSize if size <= 0).
func New(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, []gemini.Tool](size)
	if err != nil {
		// Only returned by golang-lru for a non-positive size, which New
		// above already rules out.
		panic(err)
	}
	return &Cache{lru: c}
}

// Convert validates tools (if not already validated under this content
// hash) and returns the constructed upstream tool declarations, reusing a
// cached record when the input set has been seen before.
func (c *Cache) Convert(tools []messages.ToolDef) ([]gemini.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	hash, err := hashTools(tools)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if hash == c.lastHash {
		result := c.lastTools
		c.mu.Unlock()
		return result, nil
	}
	if cached, ok := c.lru.Get(hash); ok {
		c.lastHash = hash
		c.lastTools = cached
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	if err := Validate(tools); err != nil {
		return nil, err
	}
	converted := convert(tools)

	c.mu.Lock()
	c.lastHash = hash
	c.lastTools = converted
	c.lru.Add(hash, converted)
	c.mu.Unlock()

	return converted, nil
}

func convert(tools []messages.ToolDef) []gemini.Tool {
	decls := make([]gemini.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, gemini.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.InputSchema,
		})
	}
	return []gemini.Tool{{FunctionDeclarations: decls}}
}

// hashTools computes a stable content hash by marshaling through
// encoding/json, which sorts map keys, so equal tool sets hash equal
// regardless of incoming field order.
func hashTools(tools []messages.ToolDef) (string, error) {
	raw, err := json.Marshal(tools)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
