package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbp1/schemaclone/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, edit or import the source and destination configuration",
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigSetCmd(a), newConfigImportCmd(a))
	return cmd
}

func sidesArg(args []string) ([]config.Side, error) {
	if len(args) == 0 || args[0] == "all" {
		return []config.Side{config.Source, config.Destination}, nil
	}
	s, err := config.ParseSide(args[0])
	if err != nil {
		return nil, err
	}
	return []config.Side{s}, nil
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "show [source|destination]",
		Short:     "Print the effective configuration with secrets masked",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"source", "destination", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			sides, err := sidesArg(args)
			if err != nil {
				return err
			}
			for _, s := range sides {
				printConfig(cmd.OutOrStdout(), s, a.store.Load(s))
			}
			return nil
		},
	}
}

func newConfigSetCmd(a *app) *cobra.Command {
	var (
		in    config.ConnectionConfig
		apply bool
	)
	cmd := &cobra.Command{
		Use:   "set <source|destination>",
		Short: "Update fields of one side; unset flags keep their stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := config.ParseSide(args[0])
			if err != nil {
				return err
			}
			cfg := a.store.Load(side)
			fl := cmd.Flags()
			if fl.Changed("project-id") {
				cfg.ProjectID = in.ProjectID
			}
			if fl.Changed("base-url") {
				cfg.BaseURL = in.BaseURL
			}
			if fl.Changed("public-key") {
				cfg.PublicKey = in.PublicKey
			}
			if fl.Changed("privileged-key") {
				cfg.PrivilegedKey = in.PrivilegedKey
			}
			if fl.Changed("direct-link") {
				cfg.DirectLink = in.DirectLink
			}
			if err := a.store.Save(side, cfg); err != nil {
				return fmt.Errorf("save %s config: %w", side, err)
			}
			out := cmd.OutOrStdout()
			okColor.Fprintf(out, "Saved %s configuration\n", side)
			if apply {
				if err := a.store.MarkReopen(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Configuration will be shown on the next run")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.ProjectID, "project-id", "", "Project identifier")
	f.StringVar(&in.BaseURL, "base-url", "", "Backend base URL, e.g. https://abc.example.co")
	f.StringVar(&in.PublicKey, "public-key", "", "Public (anonymous) API key")
	f.StringVar(&in.PrivilegedKey, "privileged-key", "", "Privileged (service role) API key")
	f.StringVar(&in.DirectLink, "direct-link", "", "Direct PostgreSQL connection string")
	f.BoolVar(&apply, "apply", false, "Print the applied configuration at the start of the next run")
	return cmd
}

func newConfigImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import source and destination configuration from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sides, err := a.store.ImportYAML(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sides) == 0 {
				warnColor.Fprintln(out, "Nothing to import")
				return nil
			}
			for _, s := range sides {
				okColor.Fprintf(out, "Imported %s configuration\n", s)
				printConfig(out, s, a.store.Load(s))
			}
			return nil
		},
	}
}
