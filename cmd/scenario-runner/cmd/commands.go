package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"planscape-scenarios/internal/scenario/workflow"
)

// signalContext is cancelled on SIGINT and SIGTERM, which tears the session down.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a scenario described by a YAML form file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			formPath, _ := cmd.Flags().GetString("form")
			wait, _ := cmd.Flags().GetBool("wait")
			download, _ := cmd.Flags().GetBool("export")

			ff, err := loadFormFile(formPath)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.run(ctx, func(ctx context.Context) error {
				if err := ff.apply(ctx, a.ctrl); err != nil {
					return err
				}
				if areas, err := a.ctrl.UploadedProjectAreas(); err == nil && len(areas) > 0 {
					a.log.Info("Uploaded project areas", map[string]interface{}{"count": len(areas)})
				}

				done := awaitState(a.ctrl, settled)
				if err := a.ctrl.Submit(ctx); err != nil {
					printViolations(cmd.ErrOrStderr(), a.ctrl.State())
					return err
				}
				st := a.ctrl.State()
				fmt.Fprintf(cmd.OutOrStdout(), "scenario %s submitted (%s)\n", st.ScenarioID, st.Phase)
				if !wait {
					return nil
				}

				st, err := done(ctx)
				if err != nil {
					return err
				}
				if err := printResult(cmd.OutOrStdout(), st); err != nil {
					return err
				}
				if download && st.ScenarioID != "" {
					path, err := a.ctrl.DownloadCSV(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "results saved to %s\n", path)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("form", "scenario.yaml", "Path to the scenario form file")
	cmd.Flags().Bool("wait", true, "Poll until the scenario finishes")
	cmd.Flags().Bool("export", false, "Download the results archive once the scenario succeeds")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Attach to an existing scenario and poll it until it finishes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			a, err := newAttachedApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.run(ctx, func(ctx context.Context) error {
				if layer, _ := cmd.Flags().GetString("condition"); layer != "" {
					if err := a.ctrl.ChangeCondition(ctx, layer); err != nil {
						return err
					}
				}
				done := awaitState(a.ctrl, settled)
				if err := a.ctrl.Attach(ctx); err != nil {
					return err
				}
				st, err := done(ctx)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), st)
			})
		},
	}
	cmd.Flags().String("scenario", "", "Scenario id (default: the one recorded in plan state)")
	cmd.Flags().String("condition", "", "Condition layer to display with the results")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download a scenario's results archive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			a, err := newAttachedApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.run(ctx, func(ctx context.Context) error {
				// Wait for the first fetch so the archive is named after the scenario.
				loaded := awaitState(a.ctrl, func(s workflow.State) bool { return s.Result != nil || settled(s) })
				if err := a.ctrl.Attach(ctx); err != nil {
					return err
				}
				if _, err := loaded(ctx); err != nil {
					return err
				}
				path, err := a.ctrl.DownloadCSV(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "results saved to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().String("scenario", "", "Scenario id (default: the one recorded in plan state)")
	return cmd
}

func validateFormCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-form",
		Short: "Check a YAML form file without submitting it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			formPath, _ := cmd.Flags().GetString("form")
			ff, err := loadFormFile(formPath)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()
			a, err := newApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := ff.apply(ctx, a.ctrl); err != nil {
				return err
			}
			st := a.ctrl.State()
			if len(st.Form.Violations) > 0 {
				printViolations(cmd.ErrOrStderr(), st)
				return fmt.Errorf("form has %d violation(s)", len(st.Form.Violations))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "form is valid")
			return nil
		},
	}
	cmd.Flags().String("form", "scenario.yaml", "Path to the scenario form file")
	return cmd
}

// newAttachedApp builds the app and records --scenario in plan state.
func newAttachedApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	a, err := newApp(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if id, _ := cmd.Flags().GetString("scenario"); id != "" {
		if err := a.planState.SetCurrentScenarioID(ctx, id); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func printViolations(w io.Writer, st workflow.State) {
	for _, v := range st.Form.Violations {
		fmt.Fprintf(w, "  %s\n", v)
	}
}

type resultSummary struct {
	ScenarioID string      `json:"scenarioId"`
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
	Series     interface{} `json:"chartSeries,omitempty"`
}

func printResult(w io.Writer, st workflow.State) error {
	out := resultSummary{
		ScenarioID: st.ScenarioID,
		Status:     string(st.Phase),
	}
	if st.LastError != nil {
		out.Error = st.LastError.Message
	}
	if len(st.ChartSeries) > 0 {
		out.Series = st.ChartSeries
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
