package generator

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadTitles reads the title pool: one title per line, blank lines and
// lines starting with '#' ignored.
func LoadTitles(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open title pool: %w", err)
	}
	defer f.Close()

	var titles []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		titles = append(titles, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read title pool: %w", err)
	}
	return titles, nil
}
