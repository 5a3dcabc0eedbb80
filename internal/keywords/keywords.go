package keywords

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadFile loads keywords from a text file, one per line. Blank lines and
// lines starting with # are skipped. Duplicates are kept in file order.
func ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword file %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keyword file %s: %w", path, err)
	}
	return out, nil
}

// ReadDir loads keywords from every *.txt file in a directory, files in
// lexical order so runs are reproducible.
func ReadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	var out []string
	for _, name := range files {
		kws, err := ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, kws...)
	}
	return out, nil
}
