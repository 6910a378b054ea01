package main

import (
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gomvdist/adapters/api"
	"gomvdist/adapters/excel"
	"gomvdist/domain/outcome"
	"gomvdist/internal/config"
	"gomvdist/internal/container"
	"gomvdist/internal/covariance"
	"gomvdist/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// cliApp carries state shared by all subcommands.
type cliApp struct {
	opts   []container.Option
	format string
	c      *container.Container
}

func (a *cliApp) init(cmd *cobra.Command, args []string) error {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.c, err = container.New(cfg, a.opts...)
	return err
}

func newProbCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "prob [request.yaml]",
		Short: "Compute a rectangle probability",
		Long: `Compute P(lower <= (C·X + shift) <= upper) for X ~ N(0, Σ) or the
multivariate t with the given degrees of freedom.

The request is YAML, read from the file argument or stdin:

  covariance: [[1, 0.5], [0.5, 1]]
  degrees_of_freedom: 8      # 0 for the normal
  constraints: [[1, 0], [0, 1]]
  lower: [0, 0]
  upper: [1, 1]
  kinds: [both, both]        # unbounded|upper|lower|both
  shift: [0, 0]              # optional
  max_evaluations: 100000    # optional
  absolute_tolerance: 1e-5   # optional`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body api.ProbabilityBody
			if err := readRequest(cmd, args, &body); err != nil {
				return err
			}
			req, err := body.ToRequest()
			if err != nil {
				return err
			}
			result, err := a.c.DistributionService.RectangleProbability(req)
			if err != nil {
				return err
			}
			return a.writeResult(cmd, result)
		},
	}
}

func newCritCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "crit [request.yaml]",
		Short: "Compute a critical value",
		Long: `Find the offset t for which the region widened by t has probability 1-alpha.

The request has the same fields as "prob" without shift and relative_tolerance,
plus "alpha".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body api.CriticalBody
			if err := readRequest(cmd, args, &body); err != nil {
				return err
			}
			req, err := body.ToRequest()
			if err != nil {
				return err
			}
			result, err := a.c.DistributionService.CriticalValue(req)
			if err != nil {
				return err
			}
			return a.writeResult(cmd, result)
		},
	}
}

// covReport is the output of the cov command.
type covReport struct {
	Headers      []string    `json:"headers" yaml:"headers,flow"`
	Observations int         `json:"observations" yaml:"observations"`
	Means        []float64   `json:"means" yaml:"means,flow"`
	Covariance   [][]float64 `json:"covariance" yaml:"covariance"`
}

func newCovCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "cov [sample.xlsx|sample.csv]",
		Short: "Print the empirical covariance of a sample",
		Long: `Read a sample (header row, then one numeric observation per row) from the
first sheet of an .xlsx file or from a .csv file and print its column means and
n-1 normalised covariance matrix, ready to paste into a request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := excel.NewDataReader(args[0], a.c.Logger).ReadSample()
			if err != nil {
				return err
			}
			cov, err := covariance.Empirical(sample.Data)
			if err != nil {
				return err
			}
			means, err := covariance.Means(sample.Data)
			if err != nil {
				return err
			}

			n := cov.SymmetricDim()
			rows := make([][]float64, n)
			for i := range rows {
				rows[i] = mat.Row(nil, i, cov)
			}
			return a.write(cmd.OutOrStdout(), covReport{
				Headers:      sample.Headers,
				Observations: sample.Observations(),
				Means:        means,
				Covariance:   rows,
			})
		},
	}
}

func newServeCmd(a *cliApp) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.c.Config.Server.Port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.c.HTTPServer().ListenAndServe(ctx, ":"+port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (default: PORT or 8080)")
	return cmd
}

// readRequest decodes a YAML request from args[0], or stdin when there is no
// argument or it is "-".
func readRequest(cmd *cobra.Command, args []string, v interface{}) error {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(errors.WithCode(errors.CodeInvalidInput, err), "failed to open request")
		}
		defer f.Close()
		r = f
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.WithCode(errors.CodeInvalidInput, err), "failed to parse request")
	}
	return nil
}

func (a *cliApp) writeResult(cmd *cobra.Command, result outcome.MVResult) error {
	if !result.Converged() {
		a.c.Logger.Warn("evaluation limit reached before the requested tolerance; error estimate %.3g", result.Error)
	}
	return a.write(cmd.OutOrStdout(), result)
}

func (a *cliApp) write(w io.Writer, v interface{}) error {
	switch a.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errors.InvalidInput("unknown output format " + a.format)
	}
}
