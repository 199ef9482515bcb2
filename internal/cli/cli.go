// Package cli implements the adklab command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	adklab "github.com/shanjing/adk-lab"
	"github.com/shanjing/adk-lab/config"
	"github.com/shanjing/adk-lab/logging"
	"github.com/shanjing/adk-lab/replay"
)

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg     config.Config
	dataDir string
	debug   bool
	userID  string
}

// NewRootCommand builds the adklab command tree. Configuration comes from
// the environment; flags override it.
func NewRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:          "adklab",
		Short:        "Travel agent with a durable visit ledger and replayable session state",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = a.dataDir
				cfg.LedgerPath = ""
				cfg.SessionDBPath = ""
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = a.debug
			}
			if !cmd.Flags().Changed("user") {
				a.userID = cfg.UserID
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Directory holding the ledger and session databases (overrides ADK_DATA_DIR)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log pre/post-flight state and verify the session log (overrides ADK_DEBUG)")
	root.PersistentFlags().StringVarP(&a.userID, "user", "u", "", "User to act for (defaults to USER_ID)")

	root.AddCommand(a.runCommand(), a.planCommand(), a.replayCommand(), a.sessionCommand(), a.visitsCommand())
	return root
}

func (a *app) lab() (*adklab.Lab, error) {
	return adklab.New(func(o *adklab.Options) {
		o.Config = a.cfg
		o.Logger = a.cfg.Logger(a.errOut)
	})
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if a.cfg.Timeout > 0 {
		return context.WithTimeout(cmd.Context(), a.cfg.Timeout)
	}
	return context.WithCancel(cmd.Context())
}

func (a *app) runCommand() *cobra.Command {
	var stateArgs []string
	cmd := &cobra.Command{
		Use:   "run <message...>",
		Short: "Send a message to the model-driven supervisor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initial, err := parseState(stateArgs)
			if err != nil {
				return err
			}
			lab, err := a.lab()
			if err != nil {
				return err
			}
			defer lab.Close()

			ctx, cancel := a.context(cmd)
			defer cancel()
			res, err := lab.Run(ctx, a.userID, strings.Join(args, " "), initial)
			if res != nil {
				fmt.Fprintf(a.errOut, "session %s\n", res.SessionID)
				if res.FinalText != "" {
					fmt.Fprintln(a.out, res.FinalText)
				} else {
					fmt.Fprintln(a.out, "(no final response text)")
				}
			}
			return err
		},
	}
	cmd.Flags().StringArrayVar(&stateArgs, "state", nil, "Initial state entry key=value; value is parsed as JSON when possible (repeatable)")
	return cmd
}

func (a *app) planCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <city>",
		Short: "Run the deterministic guard pipeline for a city",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lab, err := a.lab()
			if err != nil {
				return err
			}
			defer lab.Close()

			ctx, cancel := a.context(cmd)
			defer cancel()
			res, it, err := lab.Plan(ctx, a.userID, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "session %s\n", res.SessionID)
			return writeJSON(a.out, it)
		},
	}
}

func (a *app) replayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <file.jsonl|->",
		Short: "Reconstruct session state from a JSON Lines event log",
		Args:  cobra.ExactArgs(1),
		// Replaying a file needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = a.in
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open event log: %w", err)
				}
				defer f.Close()
				r = f
			}
			records, err := replay.ReadJSONL(r)
			if err != nil {
				return err
			}
			state, stats := replay.ReconstructWithStats(records)
			fmt.Fprintf(a.errOut, "records=%d applied=%d malformed=%d\n", stats.Records, stats.Applied, stats.Malformed)
			fmt.Fprintln(a.out, logging.FormatState(state))
			return nil
		},
	}
}

func (a *app) sessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect stored sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "replay <session-id>",
		Short: "Reconstruct a stored session's state from its event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lab, err := a.lab()
			if err != nil {
				return err
			}
			defer lab.Close()

			st, err := lab.ReplaySession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "events=%d applied=%d malformed=%d\n", st.Events, st.Stats.Applied, st.Stats.Malformed)
			for _, m := range st.Mismatches {
				fmt.Fprintf(a.errOut, "mismatch %s: live=%v replayed=%v\n", m.Key, m.Live, m.Replayed)
			}
			fmt.Fprintln(a.out, logging.FormatState(st.State))
			if len(st.Mismatches) > 0 {
				return fmt.Errorf("session %s: %d keys disagree with the event log", st.SessionID, len(st.Mismatches))
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a stored session's event log as JSON Lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lab, err := a.lab()
			if err != nil {
				return err
			}
			defer lab.Close()

			n, err := lab.ExportSession(cmd.Context(), args[0], a.out)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.errOut, "events=%d\n", n)
			return nil
		},
	})
	return cmd
}

func (a *app) visitsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visits",
		Short: "Query and update the visit ledger",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "check <city>",
			Short: "Evaluate the one-trip-per-city policy",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				lab, err := a.lab()
				if err != nil {
					return err
				}
				defer lab.Close()
				v, err := lab.Policy().Check(cmd.Context(), a.userID, args[0])
				if err != nil {
					return err
				}
				return writeJSON(a.out, v)
			},
		},
		&cobra.Command{
			Use:   "record <city>",
			Short: "Record a completed trip (idempotent)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				lab, err := a.lab()
				if err != nil {
					return err
				}
				defer lab.Close()
				r, err := lab.Policy().Record(cmd.Context(), a.userID, args[0])
				if err != nil {
					return err
				}
				return writeJSON(a.out, r)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List the user's recorded trips",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				lab, err := a.lab()
				if err != nil {
					return err
				}
				defer lab.Close()
				visits, err := lab.Ledger().List(cmd.Context(), a.userID)
				if err != nil {
					return err
				}
				return writeJSON(a.out, visits)
			},
		},
	)
	return cmd
}

// parseState turns key=value pairs into an initial state map. Values that
// parse as JSON keep their type; anything else is a string.
func parseState(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	state := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --state %q: want key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			state[k] = decoded
		} else {
			state[k] = v
		}
	}
	return state, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
