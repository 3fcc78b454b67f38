package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ChunkingMethod selects how the service splits the document into retrievable units.
type ChunkingMethod string

const (
	ChunkingStandard ChunkingMethod = "standard"
	ChunkingSemantic ChunkingMethod = "semantic"
)

// Valid reports whether m is a known chunking method.
func (m ChunkingMethod) Valid() bool {
	return m == ChunkingStandard || m == ChunkingSemantic
}

// EnhancementMode selects how the service rewrites a question before retrieval.
type EnhancementMode string

const (
	EnhancementNormal        EnhancementMode = "normal"
	EnhancementExpansion     EnhancementMode = "expansion"
	EnhancementDecomposition EnhancementMode = "decomposition"
)

// Valid reports whether m is a known enhancement mode.
func (m EnhancementMode) Valid() bool {
	switch m {
	case EnhancementNormal, EnhancementExpansion, EnhancementDecomposition:
		return true
	}
	return false
}

// Rewrites reports whether the mode produces a rewritten query.
func (m EnhancementMode) Rewrites() bool {
	return m == EnhancementExpansion || m == EnhancementDecomposition
}

// Config is the set of processing options a job is built with.
type Config struct {
	ChunkingMethod       ChunkingMethod  `json:"chunking_method" yaml:"chunking_method"`
	HybridSearch         bool            `json:"hybrid_search" yaml:"hybrid_search"`
	UseReranker          bool            `json:"use_reranker" yaml:"use_reranker"`
	QueryEnhancementMode EnhancementMode `json:"query_enhancement_mode" yaml:"query_enhancement_mode"`
}

// DefaultConfig returns standard chunking, dense-only retrieval, no reranker and no query rewriting.
func DefaultConfig() Config {
	return Config{
		ChunkingMethod:       ChunkingStandard,
		QueryEnhancementMode: EnhancementNormal,
	}
}

// Validate rejects unknown enum values.
func (c Config) Validate() error {
	if !c.ChunkingMethod.Valid() {
		return fmt.Errorf("invalid chunking method %q", c.ChunkingMethod)
	}
	if !c.QueryEnhancementMode.Valid() {
		return fmt.Errorf("invalid query enhancement mode %q", c.QueryEnhancementMode)
	}
	return nil
}

// ConfigPatch is a partial update; nil fields are left untouched.
type ConfigPatch struct {
	ChunkingMethod       *ChunkingMethod
	HybridSearch         *bool
	UseReranker          *bool
	QueryEnhancementMode *EnhancementMode
}

// Empty reports whether the patch changes nothing.
func (p ConfigPatch) Empty() bool {
	return p.ChunkingMethod == nil && p.HybridSearch == nil && p.UseReranker == nil && p.QueryEnhancementMode == nil
}

// Apply returns c with the patch merged in.
func (p ConfigPatch) Apply(c Config) Config {
	if p.ChunkingMethod != nil {
		c.ChunkingMethod = *p.ChunkingMethod
	}
	if p.HybridSearch != nil {
		c.HybridSearch = *p.HybridSearch
	}
	if p.UseReranker != nil {
		c.UseReranker = *p.UseReranker
	}
	if p.QueryEnhancementMode != nil {
		c.QueryEnhancementMode = *p.QueryEnhancementMode
	}
	return c
}

// ParseSetting turns a "key=value" style setting into a patch. Short keys
// (chunking, hybrid, reranker, enhance) are accepted alongside the wire names.
func ParseSetting(key, value string) (ConfigPatch, error) {
	var p ConfigPatch
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "chunking", "chunking_method":
		m := ChunkingMethod(strings.ToLower(value))
		if !m.Valid() {
			return p, fmt.Errorf("invalid chunking method %q (standard, semantic)", value)
		}
		p.ChunkingMethod = &m
	case "enhance", "query_enhancement_mode":
		m := EnhancementMode(strings.ToLower(value))
		if !m.Valid() {
			return p, fmt.Errorf("invalid query enhancement mode %q (normal, expansion, decomposition)", value)
		}
		p.QueryEnhancementMode = &m
	case "hybrid", "hybrid_search":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return p, fmt.Errorf("invalid value %q for %s", value, key)
		}
		p.HybridSearch = &b
	case "reranker", "use_reranker":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return p, fmt.Errorf("invalid value %q for %s", value, key)
		}
		p.UseReranker = &b
	default:
		return p, fmt.Errorf("unknown setting %q", key)
	}
	return p, nil
}
