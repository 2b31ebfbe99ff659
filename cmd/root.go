package cmd

import (
	"bufio"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/memory"

	"github.com/cube2222/arrowpipe/execution"
	"github.com/cube2222/arrowpipe/helpers"
	"github.com/cube2222/arrowpipe/json"
	"github.com/cube2222/arrowpipe/nodes"
	"github.com/cube2222/arrowpipe/output"
)

var (
	unnestColumns  []string
	keepColumns    []string
	withOrdinality bool
	batchSize      int
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "arrowpipe <file.json>",
	Short: "Expand array and map columns of a JSON lines file into rows.",
	Example: `arrowpipe events.json --unnest tags
arrowpipe events.json --unnest tags,attributes --keep id --ordinality`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.NewNopLogger()
		if verbose {
			logger = level.NewFilter(log.NewLogfmtLogger(os.Stderr), level.AllowDebug())
		}

		schema, err := inferFileSchema(args[0])
		if err != nil {
			return err
		}

		replicateChannels, replicateFields, unnestChannels, unnestFields, err := splitChannels(schema, unnestColumns, keepColumns)
		if err != nil {
			return err
		}

		factory, err := nodes.NewUnnestOperatorFactory(memory.DefaultAllocator, replicateChannels, replicateFields, unnestChannels, unnestFields, withOrdinality)
		if err != nil {
			return errors.Wrap(err, "couldn't create unnest operator factory")
		}
		if batchSize > 0 {
			factory.WithMaxOutputRows(batchSize)
		}
		operator, err := factory.CreateOperator()
		if err != nil {
			return errors.Wrap(err, "couldn't create unnest operator")
		}

		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrapf(err, "couldn't open %s", args[0])
		}
		defer f.Close()
		source, err := json.NewSource(memory.DefaultAllocator, f, schema, batchSize)
		if err != nil {
			return errors.Wrap(err, "couldn't create JSON source")
		}

		printer := output.NewTablePrinter(os.Stdout, factory.OutputSchema())
		if err := execution.NewDriver(operator, logger).Run(cmd.Context(), source, printer.Write); err != nil {
			return errors.Wrap(err, "couldn't run pipeline")
		}
		return printer.Close()
	},
}

func init() {
	rootCmd.Flags().StringSliceVar(&unnestColumns, "unnest", nil, "names of array or map columns to expand into rows")
	rootCmd.Flags().StringSliceVar(&keepColumns, "keep", nil, "names of columns to replicate onto every produced row (default: all other columns)")
	rootCmd.Flags().BoolVar(&withOrdinality, "ordinality", false, "append a 1-based element number column")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 0, "maximum rows per output page")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "log driver progress to stderr")
	rootCmd.MarkFlagRequired("unnest")
}

func inferFileSchema(path string) (*arrow.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't open %s", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(nil, 1024*1024*8)
	for sc.Scan() {
		if len(strings.TrimSpace(sc.Text())) == 0 {
			continue
		}
		schema, err := json.InferSchema(sc.Bytes())
		if err != nil {
			return nil, errors.Wrap(err, "couldn't infer schema")
		}
		return schema, nil
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read file")
	}
	return nil, errors.Errorf("%s is empty", path)
}

func splitChannels(schema *arrow.Schema, unnest, keep []string) (replicateChannels []int, replicateFields []arrow.Field, unnestChannels []int, unnestFields []arrow.Field, err error) {
	unnested := make(map[string]bool, len(unnest))
	for _, name := range unnest {
		indices := schema.FieldIndices(name)
		if len(indices) == 0 {
			return nil, nil, nil, nil, errors.Errorf("no column named %q in the input", name)
		}
		unnested[name] = true
		unnestChannels = append(unnestChannels, indices[0])
		unnestFields = append(unnestFields, schema.Field(indices[0]))
	}

	if len(keep) == 0 {
		// Nested columns can't be copied verbatim onto output rows, so they
		// only make it into the default when explicitly asked for.
		for _, field := range schema.Fields() {
			if !unnested[field.Name] && helpers.CanAppend(field.Type) {
				keep = append(keep, field.Name)
			}
		}
	}
	for _, name := range keep {
		indices := schema.FieldIndices(name)
		if len(indices) == 0 {
			return nil, nil, nil, nil, errors.Errorf("no column named %q in the input", name)
		}
		replicateChannels = append(replicateChannels, indices[0])
		replicateFields = append(replicateFields, schema.Field(indices[0]))
	}
	return replicateChannels, replicateFields, unnestChannels, unnestFields, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
