package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wikigr/wikigr/schema"
)

const metadataFileName = "metadata.json"

// LoadMetadata reads the pack metadata record from packDir. A missing
// file is not an error here: callers building a brand-new pack get a
// zero-valued PackMetadata back; WriteMetadata creates the file on
// first use.
func LoadMetadata(packDir string) (schema.PackMetadata, error) {
	path := filepath.Join(packDir, metadataFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return schema.PackMetadata{}, nil
	}
	if err != nil {
		return schema.PackMetadata{}, wrapConfig("store.LoadMetadata", "read metadata file", err)
	}

	var meta schema.PackMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return schema.PackMetadata{}, wrapConfig("store.LoadMetadata", "parse metadata file", err)
	}
	return meta, nil
}

// WriteMetadata writes meta to packDir, creating the directory if
// necessary.
func WriteMetadata(packDir string, meta schema.PackMetadata) error {
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return wrapConfig("store.WriteMetadata", "create pack directory", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return wrapConfig("store.WriteMetadata", "marshal metadata", err)
	}
	path := filepath.Join(packDir, metadataFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wrapConfig("store.WriteMetadata", "write metadata file", err)
	}
	return nil
}

// CheckEmbeddingCompat fails fast when a pack's existing metadata
// records a different embedding model or dimension than the one the
// caller is about to use; mixing embeddings from different models in
// one pack silently corrupts vector search, so this is always a
// configuration error, not a warning.
func CheckEmbeddingCompat(meta schema.PackMetadata, model string, dim int) error {
	if meta.EmbeddingModel == "" {
		return nil
	}
	if meta.EmbeddingModel != model || meta.EmbeddingDim != dim {
		return wrapConfig("store.CheckEmbeddingCompat", fmt.Sprintf(
			"pack was built with %q (dim %d), cannot mix in %q (dim %d)",
			meta.EmbeddingModel, meta.EmbeddingDim, model, dim,
		), nil)
	}
	return nil
}
