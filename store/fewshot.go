package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wikigr/wikigr/schema"
)

const fewShotFileName = "fewshot.json"

// FewShotFile implements retrieval's FewShotSource capability against
// a JSON file adjacent to the pack. A missing file disables the
// feature entirely rather than erroring; a present-but-malformed file
// fails fast, since a silently-empty few-shot set would be a much
// harder bug to notice.
type FewShotFile struct {
	path string
}

// NewFewShotFile returns a loader bound to packDir's few-shot file.
func NewFewShotFile(packDir string) *FewShotFile {
	return &FewShotFile{path: filepath.Join(packDir, fewShotFileName)}
}

// LoadExamples reads and strictly validates the few-shot file. Returns
// (nil, nil) if the file does not exist.
func (f *FewShotFile) LoadExamples() ([]schema.FewShotExample, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapConfig("store.LoadExamples", "read few-shot file", err)
	}

	var raw []schema.FewShotExample
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, wrapConfig("store.LoadExamples", "parse few-shot file", err)
	}

	for i, ex := range raw {
		if ex.Question == "" {
			return nil, wrapConfig("store.LoadExamples", fmt.Sprintf("example %d: question is required", i), nil)
		}
		if ex.Answer == "" {
			return nil, wrapConfig("store.LoadExamples", fmt.Sprintf("example %d: answer is required", i), nil)
		}
	}
	return raw, nil
}
