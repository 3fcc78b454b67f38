package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"semantic decomposition", Config{ChunkingMethod: ChunkingSemantic, QueryEnhancementMode: EnhancementDecomposition}, false},
		{"unknown chunking", Config{ChunkingMethod: "paragraph", QueryEnhancementMode: EnhancementNormal}, true},
		{"empty mode", Config{ChunkingMethod: ChunkingStandard}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigPatchApply(t *testing.T) {
	semantic := ChunkingSemantic
	hybrid := true
	p := ConfigPatch{ChunkingMethod: &semantic, HybridSearch: &hybrid}

	got := p.Apply(DefaultConfig())

	assert.Equal(t, ChunkingSemantic, got.ChunkingMethod)
	assert.True(t, got.HybridSearch)
	assert.False(t, got.UseReranker)
	assert.Equal(t, EnhancementNormal, got.QueryEnhancementMode)
	assert.False(t, p.Empty())
	assert.True(t, ConfigPatch{}.Empty())
}

func TestStatusReportOverlay(t *testing.T) {
	reranker := true
	base := Config{ChunkingMethod: ChunkingSemantic, HybridSearch: true, QueryEnhancementMode: EnhancementExpansion}
	r := StatusReport{State: StateReady, UseReranker: &reranker}

	got := r.Overlay(base)

	assert.Equal(t, Config{ChunkingMethod: ChunkingSemantic, HybridSearch: true, UseReranker: true, QueryEnhancementMode: EnhancementExpansion}, got)
}

func TestJobStateKnown(t *testing.T) {
	assert.True(t, ParseJobState("ready").Known())
	assert.True(t, ParseJobState("not_started").Known())
	assert.False(t, ParseJobState("error").Known())
}

func TestEntryHasContext(t *testing.T) {
	assert.True(t, Entry{Kind: KindAnswer, Context: "page 3"}.HasContext())
	assert.False(t, Entry{Kind: KindAnswer}.HasContext())
	assert.False(t, Entry{Kind: KindError, Context: "x"}.HasContext())
}

func TestParseSetting(t *testing.T) {
	p, err := ParseSetting("chunking", "Semantic")
	assert.NoError(t, err)
	assert.Equal(t, ChunkingSemantic, *p.ChunkingMethod)

	p, err = ParseSetting("use_reranker", "true")
	assert.NoError(t, err)
	assert.True(t, *p.UseReranker)

	p, err = ParseSetting("enhance", "decomposition")
	assert.NoError(t, err)
	assert.Equal(t, EnhancementDecomposition, *p.QueryEnhancementMode)

	for _, kv := range [][2]string{{"chunking", "paragraph"}, {"hybrid", "maybe"}, {"colour", "blue"}} {
		_, err := ParseSetting(kv[0], kv[1])
		assert.Error(t, err, kv[0])
	}
}
