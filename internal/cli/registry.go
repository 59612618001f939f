package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newNamespacesCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "namespaces",
		Short: "List registered namespaces in precedence order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _, err := flags.setup()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "POS\tPREFIX\tURI\tKINDS")
			for i, ns := range registry.Namespaces() {
				kinds := make([]string, 0, len(ns.Handlers))
				for kind := range ns.Handlers {
					kinds = append(kinds, kind.String())
				}
				sort.Strings(kinds)
				prefix := ns.Prefix
				if prefix == "" {
					prefix = "-"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, prefix, ns.URI, strings.Join(kinds, ","))
			}
			return tw.Flush()
		},
	}
}

func newTypesCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types [name]",
		Short: "List content types, or the fields of one type",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, catalog, err := flags.setup()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range catalog.Names() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			fields, err := catalog.Get(args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FIELD\tKIND\tPREFIX\tCONTENT TYPE")
			for _, f := range fields {
				ns := f.Namespace
				if ns == "" {
					ns = registry.DefaultNamespace()
				}
				prefix, err := registry.Resolve(ns)
				if err != nil || prefix == "" {
					prefix = "-"
				}
				contentType := f.ContentType
				if contentType == "" {
					contentType = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.Kind, prefix, contentType)
			}
			return tw.Flush()
		},
	}
}

func newValidateCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <types.yaml>",
		Short: "Check a content type catalog against the namespace registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.schemaFile = args[0]
			_, catalog, err := flags.setup()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d content types OK\n", args[0], len(catalog.Names()))
			return nil
		},
	}
}
