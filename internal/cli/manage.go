package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppipada/filebridge-go/encdec"
	"github.com/ppipada/filebridge-go/transfer"
	"github.com/ppipada/filebridge-go/varstore"
)

const (
	prefixFlag     = "prefix"
	sortFlag       = "sort"
	pageSizeFlag   = "page-size"
	pageTokenFlag  = "page-token"
	deleteFileFlag = "delete-file"

	nextPageTokenLabel = "next-page-token: "
)

func newListCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the files in the transfer directory, one page at a time",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			for _, f := range []string{prefixFlag, sortFlag, pageSizeFlag} {
				mustBindPFlag(v, "list."+f, cmd.Flags().Lookup(f))
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			order := strings.ToLower(v.GetString("list." + sortFlag))
			if order != transfer.SortOrderAscending && order != transfer.SortOrderDescending {
				return fmt.Errorf("sort must be %q or %q, got %q",
					transfer.SortOrderAscending, transfer.SortOrderDescending, order)
			}
			token, _ := cmd.Flags().GetString(pageTokenFlag)
			return withApp(v, cmd, func(a *app) error {
				entries, next, err := a.files.List(transfer.ListingConfig{
					SortOrder:      order,
					PageSize:       v.GetInt("list." + pageSizeFlag),
					FilenamePrefix: v.GetString("list." + prefixFlag),
				}, token)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(out, "%s\t%d\n", e.Name, e.FileInfo.Size())
				}
				if next != "" {
					fmt.Fprintln(out, nextPageTokenLabel+next)
				}
				return nil
			})
		},
	}
	cmd.Flags().String(prefixFlag, "", "only list files whose name starts with this prefix")
	cmd.Flags().String(sortFlag, transfer.SortOrderAscending, "sort order by name: asc or desc")
	cmd.Flags().Int(pageSizeFlag, 0, "files per page (default 100)")
	cmd.Flags().String(pageTokenFlag, "", "continue a listing from the token printed by the previous page")
	return cmd
}

func newVarsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "vars",
		Short: "Print the names of the persistent variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(v, cmd, func(a *app) error {
				names, err := a.engine.Names(cmd.Context())
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), varstore.VariableRef{Scope: varstore.Persistent, Name: n})
				}
				return nil
			})
		},
	}
}

func newUnsetCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <variable>",
		Short: "Remove a persistent variable from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := varstore.ParseVariableRef(args[0])
			if err != nil {
				return err
			}
			if ref.Scope != varstore.Persistent {
				return fmt.Errorf("%s is transient and never stored", ref)
			}
			return withApp(v, cmd, func(a *app) error {
				if _, ok, err := a.engine.Get(ref.Name); err != nil {
					return err
				} else if !ok {
					return fmt.Errorf("variable %s is not set", ref)
				}
				return a.engine.Delete(cmd.Context(), ref.Name)
			})
		},
	}
}

func newDumpCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print all persistent variables as one object keyed by name",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			mustBindPFlag(v, "dump."+outputFlag, cmd.Flags().Lookup(outputFlag))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(v, cmd, func(a *app) error {
				all, err := a.engine.All(cmd.Context())
				if err != nil {
					return err
				}
				return writeValue(cmd.OutOrStdout(), all, v.GetString("dump."+outputFlag))
			})
		},
	}
	cmd.Flags().String(outputFlag, outputJSON, "output format: json or yaml")
	return cmd
}

func newRestoreCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file>",
		Short: "Replace all persistent variables with the object in a JSON or compressed base64 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(v, cmd, func(a *app) error {
				raw, err := a.files.ReadText(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				decoded, err := a.codec.Decode(raw)
				if err != nil {
					return err
				}
				data, ok := decoded.(map[string]any)
				if !ok {
					return fmt.Errorf("%w: %s does not hold an object of variables", encdec.ErrSerialization, args[0])
				}
				if _, ok := data[""]; ok {
					return fmt.Errorf("%w: %s holds a variable without a name", varstore.ErrInvalidVariableName, args[0])
				}
				if err := a.engine.ReplaceAll(cmd.Context(), data); err != nil {
					return err
				}
				a.logger.Info("variables restored", "file", args[0], "count", len(data))
				return nil
			})
		},
	}
}

func newResetCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove every persistent variable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deleteFile, _ := cmd.Flags().GetBool(deleteFileFlag)
			return withApp(v, cmd, func(a *app) error {
				if deleteFile {
					return a.engine.DeleteBacking(cmd.Context())
				}
				return a.engine.Reset(cmd.Context())
			})
		},
	}
	cmd.Flags().Bool(deleteFileFlag, false, "delete the variable file instead of emptying it (file engine only)")
	return cmd
}
