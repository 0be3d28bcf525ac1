package store

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

const seedsFileName = "seeds.txt"

// LoadSeeds reads one article title per non-blank, non-comment
// ("#"-prefixed) line from packDir's seed list. A missing file yields
// an empty slice, not an error; the orchestrator's Run rejects an
// empty seed set with a configuration error.
func LoadSeeds(packDir string) ([]string, error) {
	path := seedsPath(packDir)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapConfig("store.LoadSeeds", "open seeds file", err)
	}
	defer f.Close()

	var seeds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, wrapConfig("store.LoadSeeds", "scan seeds file", err)
	}
	return seeds, nil
}

// WriteSeeds writes one title per line to packDir's seed list,
// overwriting any existing file.
func WriteSeeds(packDir string, seeds []string) error {
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return wrapConfig("store.WriteSeeds", "create pack directory", err)
	}
	var b strings.Builder
	for _, s := range seeds {
		b.WriteString(s)
		b.WriteString("\n")
	}
	if err := os.WriteFile(seedsPath(packDir), []byte(b.String()), 0o644); err != nil {
		return wrapConfig("store.WriteSeeds", "write seeds file", err)
	}
	return nil
}

func seedsPath(packDir string) string {
	return filepath.Join(packDir, seedsFileName)
}
