package binding

import (
	"context"
	"html"
	"strings"

	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/transfer"
	"github.com/ppipada/filebridge-go/varstore"
)

// ImportControl is a file picker trigger bound to one target variable.
// Selecting a file reads it, decodes it in the control's format and writes the result to the variable.
type ImportControl struct {
	Label  string
	AsLink bool

	bridge *Bridge
	target varstore.VariableRef
	format encdec.Format
}

// NewImportControl validates variable up front. An empty label uses the configured label
// and an empty format falls back to the configured default format.
func (b *Bridge) NewImportControl(variable, format, label string) (*ImportControl, error) {
	if strings.TrimSpace(variable) == "" {
		variable = b.cfg.DefaultVariable
	}
	ref, err := varstore.ParseVariableRef(variable)
	if err != nil {
		b.logger.Error("invalid import target", "variable", variable, "err", err)
		return nil, err
	}
	if label == "" {
		label = b.cfg.DefaultFileLabel
	}
	return &ImportControl{
		Label:  label,
		AsLink: b.cfg.RenderAsLink,
		bridge: b,
		target: ref,
		format: b.format(format),
	}, nil
}

func (c *ImportControl) Target() varstore.VariableRef { return c.target }

func (c *ImportControl) Format() encdec.Format { return c.format }

// Render returns the markup of the trigger element.
func (c *ImportControl) Render() string {
	tag := "button"
	if c.AsLink {
		tag = "a"
	}
	return `<label class="upload-file" data-format="` + html.EscapeString(string(c.format)) + `"><` +
		tag + `>` + html.EscapeString(c.Label) + `</` + tag + `></label>`
}

// Select reads handle and stores its decoded content in the target variable.
// Empty content leaves the variable untouched. On failure the variable is unchanged.
func (c *ImportControl) Select(ctx context.Context, handle string) error {
	content, err := c.bridge.files.ReadText(ctx, handle)
	return c.apply(handle, content, err)
}

// SelectAsync runs Select in the background. The returned channel yields the result once,
// after the variable has been written, and is then closed.
func (c *ImportControl) SelectAsync(ctx context.Context, handle string) <-chan error {
	errc := make(chan error, 1)
	transfer.ReadAsync(ctx, c.bridge.files, handle, func(content string, err error) {
		errc <- c.apply(handle, content, err)
		close(errc)
	})
	return errc
}

func (c *ImportControl) apply(handle, content string, readErr error) error {
	logger := c.bridge.logger
	if readErr != nil {
		logger.Error("failed to read import file", "file", handle, "err", readErr)
		return readErr
	}
	if content == "" {
		return nil
	}
	value, err := c.bridge.codec.DecodeAs(content, c.format)
	if err != nil {
		logger.Error("failed to decode import file", "file", handle, "format", c.format, "err", err)
		return err
	}
	if err := c.bridge.store.Write(c.target, value); err != nil {
		logger.Error("failed to store imported data", "variable", c.target.String(), "err", err)
		return err
	}
	return nil
}
