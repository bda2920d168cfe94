// Package binding connects user actions to the payload pipeline:
// export writes an encoded value to a file and import reads a file back into a variable.
package binding

import "github.com/ppipada/filebridge-go/encdec"

const (
	DefaultFileLabel     = "Import"
	DefaultFileExtension = ".twinedata"
	DefaultFileName      = "file"
	DefaultVariable      = "$fileData"
)

// Config is the host facing configuration surface.
type Config struct {
	// DefaultFileLabel is shown on import controls created without a label.
	DefaultFileLabel string `json:"defaultFileLabel" yaml:"defaultFileLabel"`
	// RenderAsLink renders import controls as links instead of buttons.
	RenderAsLink         bool          `json:"renderAsLink"         yaml:"renderAsLink"`
	DefaultFileExtension string        `json:"defaultFileExtension" yaml:"defaultFileExtension"`
	DefaultFileName      string        `json:"defaultFileName"      yaml:"defaultFileName"`
	DefaultVariable      string        `json:"defaultVariable"      yaml:"defaultVariable"`
	DefaultFormat        encdec.Format `json:"defaultFormat"        yaml:"defaultFormat"`
}

func DefaultConfig() Config {
	return Config{
		DefaultFileLabel:     DefaultFileLabel,
		RenderAsLink:         false,
		DefaultFileExtension: DefaultFileExtension,
		DefaultFileName:      DefaultFileName,
		DefaultVariable:      DefaultVariable,
		DefaultFormat:        encdec.FormatText,
	}
}

// withDefaults fills every empty field from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultFileLabel == "" {
		c.DefaultFileLabel = d.DefaultFileLabel
	}
	if c.DefaultFileExtension == "" {
		c.DefaultFileExtension = d.DefaultFileExtension
	}
	if c.DefaultFileName == "" {
		c.DefaultFileName = d.DefaultFileName
	}
	if c.DefaultVariable == "" {
		c.DefaultVariable = d.DefaultVariable
	}
	if c.DefaultFormat == "" {
		c.DefaultFormat = d.DefaultFormat
	}
	return c
}
