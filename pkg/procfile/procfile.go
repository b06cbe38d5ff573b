// Package procfile parses the two line-oriented resources poorman consumes:
// the Procfile of "name: command" process definitions and the optional .env
// file of KEY=VALUE environment overrides.
package procfile

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Definition is a single named process entry, kept in file order. Names are
// not required to be unique; a duplicate name launches a duplicate process.
type Definition struct {
	Name    string
	Command string
}

// Parse reads process definitions. Everything from the first '#' on a line
// is stripped; lines left empty are skipped; the remainder splits at the
// first ':', with the command following the ": " separator. Lines with no
// ':' left after comment-stripping are skipped.
func Parse(r io.Reader) ([]Definition, error) {
	var defs []Definition
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		defs = append(defs, Definition{
			Name:    line[:idx],
			Command: strings.TrimPrefix(line[idx+1:], " "),
		})
	}
	return defs, scanner.Err()
}

// ParseFile opens and parses a Procfile. A missing file surfaces as the
// *os.PathError from Open so callers can distinguish it from a parse error.
func ParseFile(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func stripComment(line string) string {
	if idx := strings.Index(line, "#"); idx >= 0 {
		line = line[:idx]
	}
	return line
}
