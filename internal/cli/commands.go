package cli

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/ppipada/filebridge-go/binding"
	"github.com/ppipada/filebridge-go/encdec"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// withApp opens the app for the duration of fn.
func withApp(v *viper.Viper, cmd *cobra.Command, fn func(a *app) error) (err error) {
	a, err := newApp(v, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close())
	}()
	return fn(a)
}

func newExportCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <variable> [file]",
		Short: "Write a stored variable to a file",
		Args:  cobra.RangeArgs(1, 2),
		PreRun: func(cmd *cobra.Command, _ []string) {
			mustBindPFlag(v, "export."+formatFlag, cmd.Flags().Lookup(formatFlag))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			file := ""
			if len(args) > 1 {
				file = args[1]
			}
			return withApp(v, cmd, func(a *app) error {
				name, err := a.bridge.ExportVariable(args[0], file, v.GetString("export."+formatFlag))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(a.files.BaseDir(), name))
				return nil
			})
		},
	}
	cmd.Flags().String(formatFlag, "", "file format: text, json or base64 (default from config, else text)")
	return cmd
}

func newImportCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Read a file into a variable",
		Args:  cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, _ []string) {
			mustBindPFlag(v, "import."+formatFlag, cmd.Flags().Lookup(formatFlag))
			mustBindPFlag(v, "import."+varFlag, cmd.Flags().Lookup(varFlag))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, cmd, func(a *app) error {
				control, err := a.bridge.NewImportControl(
					v.GetString("import."+varFlag),
					v.GetString("import."+formatFlag),
					"",
				)
				if err != nil {
					return err
				}
				if err := <-control.SelectAsync(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), control.Target().String())
				return nil
			})
		},
	}
	cmd.Flags().String(formatFlag, "", "file format: text, json, base64 or raw (default from config, else text)")
	cmd.Flags().String(varFlag, "", "target variable, $name or _name (default from config, else $fileData)")
	return cmd
}

func newGetCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <variable>",
		Short: "Print a stored variable",
		Args:  cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, _ []string) {
			mustBindPFlag(v, "get."+pathFlag, cmd.Flags().Lookup(pathFlag))
			mustBindPFlag(v, "get."+outputFlag, cmd.Flags().Lookup(outputFlag))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, cmd, func(a *app) error {
				value, ok, err := a.store.ReadVariable(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("variable %s is not set", args[0])
				}
				if path := v.GetString("get." + pathFlag); path != "" {
					value, err = queryPath(value, path)
					if err != nil {
						return err
					}
				}
				return writeValue(cmd.OutOrStdout(), value, v.GetString("get."+outputFlag))
			})
		},
	}
	cmd.Flags().String(pathFlag, "", "only print the part of the value selected by this path (e.g. 'player.items.0')")
	cmd.Flags().String(outputFlag, outputJSON, "output format: json or yaml")
	return cmd
}

func newSetCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "set <variable> <value>",
		Short: "Store a value; valid JSON is stored as data, anything else as text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, cmd, func(a *app) error {
				return a.store.WriteVariable(args[0], parseArgValue(args[1]))
			})
		},
	}
}

func newEncodeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode standard input in the given format",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			mustBindPFlag(v, "encode."+formatFlag, cmd.Flags().Lookup(formatFlag))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withApp(v, cmd, func(a *app) error {
				format := encdec.ParseFormat(v.GetString("encode." + formatFlag))
				out, err := a.codec.Encode(parseArgValue(strings.TrimSpace(string(in))), format)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().String(formatFlag, string(encdec.FormatBase64), "output format: text, json or base64")
	return cmd
}

func newDecodeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode standard input; without --format JSON and compressed base64 are both recognized",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			mustBindPFlag(v, "decode."+formatFlag, cmd.Flags().Lookup(formatFlag))
			mustBindPFlag(v, "decode."+outputFlag, cmd.Flags().Lookup(outputFlag))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withApp(v, cmd, func(a *app) error {
				var value any
				if f := v.GetString("decode." + formatFlag); f != "" {
					value, err = a.codec.DecodeAs(string(in), encdec.ParseFormat(f))
				} else {
					value, err = a.codec.Decode(string(in))
				}
				if err != nil {
					return err
				}
				return writeValue(cmd.OutOrStdout(), value, v.GetString("decode."+outputFlag))
			})
		},
	}
	cmd.Flags().String(formatFlag, "", "input format: json or base64 (default: detect)")
	cmd.Flags().String(outputFlag, outputJSON, "output format: json or yaml")
	return cmd
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run <command> [args...]",
		Short: "Invoke a registered command: import <var> [format] [label] or export <payload> [file] [format]",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, cmd, func(a *app) error {
				registry, err := binding.NewRegistry(a.bridge)
				if err != nil {
					return err
				}
				out, err := registry.Invoke(cmd.Context(), args[0], args[1:])
				if err != nil {
					return fmt.Errorf("%s: %w", binding.KindOf(err), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

// parseArgValue reads s as JSON when it is valid JSON and as text otherwise.
func parseArgValue(s string) any {
	if v, err := encdec.ParsePayload(s); err == nil {
		return v
	}
	return s
}

func queryPath(value any, path string) (any, error) {
	doc, err := encdec.MarshalPayload(value)
	if err != nil {
		return nil, err
	}
	res := gjson.Get(doc, path)
	if !res.Exists() {
		return nil, fmt.Errorf("path %q not found", path)
	}
	return res.Value(), nil
}

func writeValue(w io.Writer, value any, output string) error {
	switch strings.ToLower(output) {
	case "", outputJSON:
		out, err := encdec.MarshalPayload(value)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	case outputYAML:
		out, err := yaml.Marshal(value)
		if err != nil {
			return fmt.Errorf("%w: %w", encdec.ErrSerialization, err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("unsupported output %q", output)
	}
}
