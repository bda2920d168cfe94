// Package cli contains the commands of the filebridge binary.
package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFlag         = "config"
	storeEngineFlag    = "store-engine"
	storePathFlag      = "store-path"
	dirFlag            = "dir"
	compressorFlag     = "compressor"
	compressedVarsFlag = "compressed-vars"
	logLevelFlag       = "log-level"
	logFileFlag        = "log-file"

	formatFlag = "format"
	varFlag    = "var"
	pathFlag   = "path"
	outputFlag = "output"

	bindingLabelConf     = "binding.default-file-label"
	bindingAsLinkConf    = "binding.render-as-link"
	bindingExtensionConf = "binding.default-file-extension"
	bindingNameConf      = "binding.default-file-name"
	bindingVariableConf  = "binding.default-variable"
	bindingFormatConf    = "binding.default-format"
)

// NewRootCommand builds the command tree. Every setting is read from CLI flags, environment variables prefixed
// with FILEBRIDGE, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FILEBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for _, path := range []string{"$HOME/.filebridge", "."} {
		v.AddConfigPath(path)
	}

	root := &cobra.Command{
		Use:   "filebridge",
		Short: "Export variables to files and import files back into variables",
		Long: `filebridge keeps a store of named variables and moves them in and out of files.

Variables are named with a sigil: $name is persistent and kept in the store, _name is transient and only lives
for the current process. Files are written as text, JSON or compressed base64 JSON.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			for _, name := range []string{
				storeEngineFlag, storePathFlag, dirFlag, compressorFlag, compressedVarsFlag, logLevelFlag, logFileFlag,
			} {
				mustBindPFlag(v, name, flags.Lookup(name))
			}
			return readConfig(v, flags)
		},
	}

	flags := root.PersistentFlags()
	flags.String(configFlag, "", "config file (default is $HOME/.filebridge/config.yaml or ./config.yaml)")
	flags.String(storeEngineFlag, engineFile, "the store engine for persistent variables: 'file' or 'sqlite'")
	flags.String(storePathFlag, "", "path of the variable store (default depends on the engine)")
	flags.String(dirFlag, ".", "directory files are exported to and imported from")
	flags.String(compressorFlag, "zstd", "compressor for the base64 format: 'zstd', 'lz4' or 'gzip'")
	flags.StringSlice(compressedVarsFlag, nil, "persistent variables kept compressed in the file store")
	flags.String(logLevelFlag, "warn", "log level: debug, info, warn or error")
	flags.String(logFileFlag, "", "write logs to this file with rotation instead of stderr")

	v.SetDefault(bindingLabelConf, "")
	v.SetDefault(bindingAsLinkConf, false)
	v.SetDefault(bindingExtensionConf, "")
	v.SetDefault(bindingNameConf, "")
	v.SetDefault(bindingVariableConf, "")
	v.SetDefault(bindingFormatConf, "")

	root.AddCommand(
		newExportCommand(v),
		newImportCommand(v),
		newGetCommand(v),
		newSetCommand(v),
		newEncodeCommand(v),
		newDecodeCommand(v),
		newRunCommand(v),
		newListCommand(v),
		newVarsCommand(v),
		newUnsetCommand(v),
		newDumpCommand(v),
		newRestoreCommand(v),
		newResetCommand(v),
	)
	return root
}

// mustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func readConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if f := flags.Lookup(configFlag); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}
