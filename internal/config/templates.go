package config

import (
	"fmt"
	"os"
)

func Template() string {
	return fileTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(fileTemplate), 0o644)
}

const fileTemplate = `# variantctl settings. Every key is optional; host facts from PlatformIO
# (PROJECT_DIR, PROJECT_PACKAGES_DIR) are used for anything left unset.

# project_dir = "."
# packages_dir = "~/.platformio/packages"

# Report what would be copied without writing.
dry_run = false

# Prometheus textfile written after each sync.
# metrics_file = ".pio/variantctl.prom"

log_level = "info"
`
