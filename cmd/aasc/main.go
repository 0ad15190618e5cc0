// Command aasc is the operator-facing entrypoint for the Agent Action
// Safety Core: today it exposes the `gate` command that resolves a
// pending approval record from a terminal.
//
// The teacher's own cmd/helm/main.go dispatches subcommands off a
// hand-rolled flag.NewFlagSet switchboard. AASC's command grammar is a
// single verb with a small alias table, which is exactly the shape
// spf13/cobra is built for, so this entrypoint is grounded instead on
// the other pack repos that reach for cobra for that reason
// (andymwolf-agentium, tim-coutinho-agentops) rather than imitating the
// teacher's own dispatcher here.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/openclaw/aasc/pkg/approval"
	"github.com/openclaw/aasc/pkg/contracts"
)

// decisionAliases maps every accepted spelling of a decision to its
// canonical ApprovalDecision, per spec §6's command surface grammar.
var decisionAliases = map[string]contracts.ApprovalDecision{
	"allow-once":  contracts.DecisionAllowOnce,
	"allow":       contracts.DecisionAllowOnce,
	"once":        contracts.DecisionAllowOnce,
	"allowonce":   contracts.DecisionAllowOnce,
	"allow-always": contracts.DecisionAllowAlways,
	"always":      contracts.DecisionAllowAlways,
	"allowalways": contracts.DecisionAllowAlways,
	"remember":    contracts.DecisionAllowAlways,
	"deny":        contracts.DecisionDeny,
	"reject":      contracts.DecisionDeny,
	"block":       contracts.DecisionDeny,
}

func resolveDecision(token string) (contracts.ApprovalDecision, bool) {
	d, ok := decisionAliases[token]
	return d, ok
}

// resolveGateArgs accepts the id and the decision alias in either
// order, per spec §6: "either token order is accepted as long as
// exactly one token is a decision alias."
func resolveGateArgs(first, second string) (id string, decision contracts.ApprovalDecision, err error) {
	firstDecision, firstIsDecision := resolveDecision(first)
	secondDecision, secondIsDecision := resolveDecision(second)

	switch {
	case firstIsDecision && secondIsDecision:
		return "", "", fmt.Errorf("both %q and %q look like a decision alias: exactly one of the two arguments must be the record id", first, second)
	case firstIsDecision:
		return second, firstDecision, nil
	case secondIsDecision:
		return first, secondDecision, nil
	default:
		return "", "", fmt.Errorf("unrecognized decision: expected one of %q or %q to be allow-once, allow-always, or deny (or an alias)", first, second)
	}
}

func newGateCommand(mgr *approval.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "gate <id> <allow-once|allow-always|deny>",
		Short: "Resolve a pending autonomy approval record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, decision, err := resolveGateArgs(args[0], args[1])
			if err != nil {
				return err
			}

			resolvedBy := "cli"
			if !mgr.Resolve(id, decision, &resolvedBy) {
				return fmt.Errorf("no pending approval record with id %q (it may already be resolved or unknown)", id)
			}

			cmd.Printf("resolved %s as %s\n", id, decision)
			return nil
		},
	}
}

func newRootCommand(mgr *approval.Manager) *cobra.Command {
	root := &cobra.Command{
		Use:   "aasc",
		Short: "Agent Action Safety Core operator CLI",
	}
	root.AddCommand(newGateCommand(mgr))
	return root
}

func main() {
	// Non-goal (iii) rules out cross-process coordination: this binary
	// assumes it is invoked from within the same process embedding the
	// pipeline (e.g. as a REPL command), sharing its approval.Manager
	// rather than reaching it over IPC. A standalone process wired this
	// way will only ever see its own, empty Manager.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	mgr := approval.New(logger)

	if err := newRootCommand(mgr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
