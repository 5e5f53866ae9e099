package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"quilt-athena/internal/domain"
	"quilt-athena/internal/service/provision"
)

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// skipConfig is a PersistentPreRunE for commands that do not talk to AWS.
func skipConfig(cmd *cobra.Command, _ []string) error {
	return validateOutputFormat(getOutputFormat(cmd))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type objectView struct {
	Name              string `json:"name"`
	Kind              string `json:"kind"`
	State             string `json:"state"`
	DropExecutionID   string `json:"drop_execution_id,omitempty"`
	CreateExecutionID string `json:"create_execution_id,omitempty"`
	DropTolerated     bool   `json:"drop_tolerated,omitempty"`
	ResultRows        int    `json:"result_rows,omitempty"`
	Error             string `json:"error,omitempty"`
}

type reportView struct {
	RunID          string       `json:"run_id"`
	OutputLocation string       `json:"output_location"`
	Objects        []objectView `json:"objects"`
	Duration       string       `json:"duration"`
	Partial        bool         `json:"partial"`
}

func newReportView(r *provision.Report) reportView {
	v := reportView{
		RunID:          r.RunID,
		OutputLocation: r.Output.String(),
		Objects:        make([]objectView, 0, len(r.Objects)),
		Duration:       r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		Partial:        r.Partial(),
	}
	for _, o := range r.Objects {
		ov := objectView{
			Name:              o.Object.Name,
			Kind:              string(o.Object.Kind),
			State:             string(o.State),
			DropExecutionID:   o.DropExecutionID,
			CreateExecutionID: o.CreateExecutionID,
			DropTolerated:     o.DropTolerated,
			ResultRows:        o.ResultRows,
		}
		if o.Err != nil {
			ov.Error = o.Err.Error()
		}
		v.Objects = append(v.Objects, ov)
	}
	return v
}

func printReport(cmd *cobra.Command, r *provision.Report) error {
	if getOutputFormat(cmd) == "json" {
		return printJSON(cmd.OutOrStdout(), newReportView(r))
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "OBJECT\tKIND\tSTATE\tDROP EXECUTION\tCREATE EXECUTION")
	for _, o := range r.Objects {
		drop := o.DropExecutionID
		if o.DropTolerated {
			drop += " (absent)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Object.Name, o.Object.Kind, o.State, dash(drop), dash(o.CreateExecutionID))
	}
	return w.Flush()
}

func printPlan(cmd *cobra.Command, plan *provision.Plan) error {
	if getOutputFormat(cmd) == "json" {
		type stepView struct {
			Name   string `json:"name"`
			Kind   string `json:"kind"`
			Drop   string `json:"drop,omitempty"`
			Create string `json:"create"`
		}
		steps := make([]stepView, 0, len(plan.Steps))
		for _, s := range plan.Steps {
			steps = append(steps, stepView{Name: s.Object.Name, Kind: string(s.Object.Kind), Drop: s.Drop, Create: s.Create})
		}
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"output_location": plan.Output.String(),
			"steps":           steps,
		})
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "-- output location: %s\n", plan.Output)
	for _, s := range plan.Steps {
		_, _ = fmt.Fprintf(w, "\n-- %s\n", s.Object.Ref())
		if s.Drop != "" {
			_, _ = fmt.Fprintf(w, "%s;\n", s.Drop)
		}
		_, _ = fmt.Fprintf(w, "%s;\n", s.Create)
	}
	return nil
}

// printError reports a command failure. Step failures also carry the
// statement and execution id that failed.
func printError(stdout, stderr io.Writer, output string, err error) {
	var stepErr *provision.StepError
	hasStep := errors.As(err, &stepErr)

	if output == "json" {
		errObj := map[string]interface{}{
			"error": err.Error(),
		}
		if hasStep {
			errObj["object"] = stepErr.Object.String()
			errObj["phase"] = stepErr.Phase
			errObj["statement"] = stepErr.Statement
			if stepErr.ExecutionID != "" {
				errObj["execution_id"] = stepErr.ExecutionID
			}
		}
		var remote *domain.RemoteQueryFailure
		if errors.As(err, &remote) {
			errObj["state"] = string(remote.State)
		}
		_ = printJSON(stdout, errObj)
		return
	}

	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	if hasStep {
		_, _ = fmt.Fprintf(stderr, "Statement:\n%s\n", stepErr.Statement)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
