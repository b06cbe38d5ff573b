package procfile

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ParseEnv reads KEY=VALUE overrides. Everything from the first '#' on a
// line is stripped; whatever remains is kept whole when it contains '=',
// and ignored otherwise. Entries come back in file order; appending them to
// a process environment gives the usual last-write-wins resolution for
// repeated keys.
func ParseEnv(r io.Reader) ([]string, error) {
	var overrides []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		if !strings.Contains(line, "=") {
			continue
		}
		overrides = append(overrides, line)
	}
	return overrides, scanner.Err()
}

// ParseEnvFile parses an override file. The file is optional: a missing
// path yields no overrides and no error.
func ParseEnvFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return ParseEnv(f)
}
