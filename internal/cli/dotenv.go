package cli

import (
	"bufio"
	"os"
	"strings"
)

// loadDotenv reads a simple KEY=VALUE file (one assignment per line, "#"
// comments, optional surrounding quotes) and applies every entry to the
// process environment that isn't already set. It is not a full dotenv
// implementation; no example in this retrieval pack carries a dotenv
// dependency, so this covers the one local-development need (keeping
// CTRCIA_COMMON_KEYS out of a shell history) without inventing one.
func loadDotenv(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)

		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}
