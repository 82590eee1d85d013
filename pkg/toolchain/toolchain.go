// pkg/toolchain/toolchain.go
package toolchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrMalformed indicates the toolchain document could not be parsed
var ErrMalformed = errors.New("malformed toolchain document")

// Channel extracts the toolchain channel from a rust-toolchain.toml document.
// It returns "" when the toolchain.channel field is absent or not a string;
// only syntactically invalid TOML is an error. An empty result means "use the
// ambient default toolchain".
func Channel(doc []byte) (string, error) {
	var parsed map[string]interface{}
	if err := toml.Unmarshal(doc, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	table, ok := parsed["toolchain"].(map[string]interface{})
	if !ok {
		return "", nil
	}
	channel, ok := table["channel"].(string)
	if !ok {
		return "", nil
	}
	return channel, nil
}

// ChannelFromProject looks for a toolchain file in dir, trying
// rust-toolchain.toml first and the legacy rust-toolchain file second.
// Neither file existing is not an error.
func ChannelFromProject(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "rust-toolchain.toml"))
	if err == nil {
		return Channel(data)
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading rust-toolchain.toml: %w", err)
	}

	data, err = os.ReadFile(filepath.Join(dir, "rust-toolchain"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading rust-toolchain: %w", err)
	}
	// The legacy file is either TOML or a bare channel name. A bare name is
	// never valid TOML, so a parse failure here means the legacy form.
	if channel, tomlErr := Channel(data); tomlErr == nil {
		return channel, nil
	}
	return strings.TrimSpace(string(data)), nil
}
