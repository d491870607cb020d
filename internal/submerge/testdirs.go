package submerge

import (
	"fmt"
	"os"
	"strings"
)

// WriteTestDirectories writes the requested test directories to path, one per
// line. The file is only created when at least one directory was requested.
func WriteTestDirectories(path string, dirs []string) error {
	if len(dirs) == 0 {
		return nil
	}

	content := strings.Join(dirs, "\n") + "\n"

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing test directories file failed: %w", err)
	}

	return nil
}
