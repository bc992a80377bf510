package config

import (
	"fmt"
	"strings"
)

// DefaultImageMaxBytes is the upload limit applied when images.maxbytes is not set.
const DefaultImageMaxBytes = 5 << 20

// ImagesConfig configures where uploaded product images live and how they are addressed.
type ImagesConfig struct {
	Dir       string `koanf:"dir"`
	URLPrefix string `koanf:"urlprefix"`
	MaxBytes  int64  `koanf:"maxbytes"`
}

// String returns a string representation of the images configuration.
func (c *ImagesConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Images ---\n")
	b.WriteString(fmt.Sprintf("  dir: %s\n", c.Dir))
	b.WriteString(fmt.Sprintf("  urlprefix: %s\n", c.URLPrefix))
	b.WriteString(fmt.Sprintf("  maxbytes: %d\n", c.MaxBytes))
	return b.String()
}

func (c *ImagesConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("images.dir is not configured")
	}
	if !strings.HasPrefix(c.URLPrefix, "/") || !strings.HasSuffix(c.URLPrefix, "/") {
		return fmt.Errorf("images.urlprefix must start and end with '/': %q", c.URLPrefix)
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = DefaultImageMaxBytes
	}
	if c.MaxBytes < 0 {
		return fmt.Errorf("images.maxbytes must be greater than 0")
	}
	return nil
}
