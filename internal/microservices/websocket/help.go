package websocket

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed help.html
var defaultHelp []byte

// loadHelp returns the help document served on plain GET requests.
func loadHelp(path string) ([]byte, error) {
	if path == "" {
		return defaultHelp, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read help file %s: %w", path, err)
	}
	return data, nil
}
