package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/hax0kartik/ctrcia/ctrutil"
	"github.com/hax0kartik/ctrcia"
)

// loadKeyProvider builds a ctrcia.KeyProvider from the environment and CLI
// flags, per spec.md §9: the six common keys are never embedded in
// source. CTRCIA_COMMON_KEYS holds them as 6 comma-separated 32-character
// hex strings; --key-file points at a file with the same format (one key
// per line, in slot order) for users who don't want them in an env var.
func loadKeyProvider(keyFile, seedDBPath string) (*ctrcia.StaticKeyProvider, error) {
	var keys [ctrcia.NumCommonKeys]ctrutil.Key128
	var err error

	switch {
	case keyFile != "":
		keys, err = loadKeysFromFile(keyFile)
	case os.Getenv("CTRCIA_COMMON_KEYS") != "":
		keys, err = parseCommonKeys(os.Getenv("CTRCIA_COMMON_KEYS"))
	default:
		return nil, fmt.Errorf("no common keys available: set CTRCIA_COMMON_KEYS or pass --key-file")
	}
	if err != nil {
		return nil, err
	}

	provider := &ctrcia.StaticKeyProvider{CommonKeys: keys}

	if seedDBPath != "" {
		seeds, err := ctrcia.LoadSeedDBFile(seedDBPath)
		if err != nil {
			return nil, err
		}
		provider.Seeds = seeds
	}

	return provider, nil
}

func parseCommonKeys(spec string) ([ctrcia.NumCommonKeys]ctrutil.Key128, error) {
	var keys [ctrcia.NumCommonKeys]ctrutil.Key128

	parts := strings.Split(spec, ",")
	if len(parts) != ctrcia.NumCommonKeys {
		return keys, fmt.Errorf("CTRCIA_COMMON_KEYS must list exactly %d comma-separated keys, got %d", ctrcia.NumCommonKeys, len(parts))
	}

	for i, part := range parts {
		raw, err := hex.DecodeString(strings.TrimSpace(part))
		if err != nil || len(raw) != 16 {
			return keys, fmt.Errorf("CTRCIA_COMMON_KEYS slot %d must be 32 hex characters", i)
		}
		copy(keys[i][:], raw)
	}

	return keys, nil
}

func loadKeysFromFile(path string) ([ctrcia.NumCommonKeys]ctrutil.Key128, error) {
	var keys [ctrcia.NumCommonKeys]ctrutil.Key128

	data, err := os.ReadFile(path)
	if err != nil {
		return keys, fmt.Errorf("failed to read key file: %w", err)
	}

	lines := make([]string, 0, ctrcia.NumCommonKeys)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) != ctrcia.NumCommonKeys {
		return keys, fmt.Errorf("key file must list exactly %d keys, got %d", ctrcia.NumCommonKeys, len(lines))
	}

	for i, line := range lines {
		raw, err := hex.DecodeString(line)
		if err != nil || len(raw) != 16 {
			return keys, fmt.Errorf("key file line %d must be 32 hex characters", i+1)
		}
		copy(keys[i][:], raw)
	}

	return keys, nil
}
