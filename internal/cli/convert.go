package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-marshall/pkg/marshall"
	"gopkg.in/yaml.v3"
)

func newExportCommand(flags *rootFlags) *cobra.Command {
	var typeName, valuesPath, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render an item as an XML metadata document",
		Long: `Render an item as an XML metadata document.

Values are read as a YAML mapping of field name to value from --values,
or from stdin when --values is "-" or omitted. File and Image fields take
a mapping with data (base64) or text, plus content_type and filename.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, catalog, err := flags.setup()
			if err != nil {
				return err
			}
			fields, err := catalog.Get(typeName)
			if err != nil {
				return err
			}

			in, err := openInput(cmd, valuesPath)
			if err != nil {
				return err
			}
			defer in.Close()

			values := map[string]any{}
			if err := yaml.NewDecoder(in).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("failed to decode values: %w", err)
			}

			item := marshall.NewItem(typeName, fields)
			if err := marshall.ApplyValues(item, values, marshall.SanitizeHTML(flags.sanitizeHTML)); err != nil {
				return err
			}

			data, err := marshall.NewAssembler(registry).Marshal(item)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), outPath, data)
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Content type name")
	cmd.Flags().StringVar(&valuesPath, "values", "-", "YAML value file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// importReport is what import prints.
type importReport struct {
	Type     string         `yaml:"type"`
	Values   map[string]any `yaml:"values"`
	Warnings []string       `yaml:"warnings,omitempty"`
}

func newImportCommand(flags *rootFlags) *cobra.Command {
	var typeName, outPath string

	cmd := &cobra.Command{
		Use:   "import [document.xml]",
		Short: "Read an XML metadata document back into field values",
		Long: `Read an XML metadata document back into field values and print them
as YAML. Elements that map to no field of the type are listed as warnings.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, catalog, err := flags.setup()
			if err != nil {
				return err
			}
			fields, err := catalog.Get(typeName)
			if err != nil {
				return err
			}

			var path string
			if len(args) == 1 {
				path = args[0]
			}
			in, err := openInput(cmd, path)
			if err != nil {
				return err
			}
			defer in.Close()

			item := marshall.NewItem(typeName, fields)
			warnings, err := marshall.NewAssembler(registry).Unmarshal(in, item)
			if err != nil {
				return err
			}

			report := importReport{Type: typeName, Values: map[string]any{}}
			for name, value := range item.Values() {
				report.Values[name] = displayValue(value)
			}
			for _, w := range warnings {
				report.Warnings = append(report.Warnings, w.Error())
			}

			data, err := yaml.Marshal(report)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), outPath, data)
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "Content type name")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

// displayValue turns field values into the shapes export accepts back.
func displayValue(v any) any {
	switch val := v.(type) {
	case marshall.Blob:
		return map[string]any{
			"data":         base64.StdEncoding.EncodeToString(val.Data),
			"content_type": val.ContentType,
			"filename":     val.Filename,
		}
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}
