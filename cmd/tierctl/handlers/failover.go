package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/tierctl/tierctl/internal/config"
	"github.com/tierctl/tierctl/internal/executor"
	"github.com/tierctl/tierctl/internal/failover"
	"github.com/tierctl/tierctl/internal/graph"
	"github.com/tierctl/tierctl/internal/observe"
)

// FailoverOptions configures a failover run.
type FailoverOptions struct {
	// PlanPath is the plan document; its recovery section is required.
	PlanPath string
	// ResumeGates releases manual gates without prompting. Intended for
	// rehearsals, not real recoveries.
	ResumeGates bool
	// Out receives the terminal report. Nil selects stdout.
	Out io.Writer
	// In supplies manual gate confirmations. Nil selects stdin.
	In io.Reader
	// Observer receives structured events. Nil selects the console observer.
	Observer observe.Observer
}

// Failover replays the plan's recovery groups as a phased boot sequence.
// Manual gates park the run until confirmed on In (or immediately released
// with ResumeGates). Any group failure or wait-condition timeout fails the
// entire run.
func Failover(ctx context.Context, opts FailoverOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	observer := opts.Observer
	if observer == nil {
		observer = observe.NewConsoleObserver()
	}

	doc, err := loadDocument(opts.PlanPath)
	if err != nil {
		return err
	}
	if doc.Recovery == nil {
		return fmt.Errorf("plan document has no recovery section")
	}
	tun := loadTunables()

	source, err := graph.Build(nodeSpecs(doc))
	if err != nil {
		return err
	}

	plan := buildRecoveryPlan(doc.Recovery, tun)

	exec := executor.New(newLockProbe(), observer)
	builder := newTaskBuilder(doc, tun, newBootstrapAction(observer))
	orch := failover.NewOrchestrator(exec, builder, observer)

	run, err := orch.Start(plan, source)
	if err != nil {
		return err
	}

	gates := bufio.NewScanner(in)
	for {
		if err := orch.Advance(ctx, run); err != nil {
			renderFailoverReport(out, run)
			return err
		}

		switch run.State() {
		case failover.StateSucceeded:
			renderFailoverReport(out, run)
			return nil
		case failover.StateWaitingOnGate:
			if !opts.ResumeGates {
				group := run.Plan.Groups[run.CurrentGroupIndex()]
				fmt.Fprintf(out, "boot group %q complete; press Enter to release the gate\n", group.Name)
				if !gates.Scan() {
					return fmt.Errorf("manual gate for group %q was never released", group.Name)
				}
			}
			if err := orch.ResumeManualGate(run.ID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("failover run %s in unexpected state %s", run.ID, run.State())
		}
	}
}

// buildRecoveryPlan converts the document's recovery section into boot
// groups, wiring probe commands and tunable defaults.
func buildRecoveryPlan(spec *config.RecoverySpec, tun *config.Tunables) *failover.RecoveryPlan {
	plan := &failover.RecoveryPlan{}
	for _, g := range spec.Groups {
		group := failover.BootGroup{
			Name:         g.Name,
			Members:      g.Members,
			WaitTimeout:  g.WaitTimeout.Std(),
			PollInterval: g.PollInterval.Std(),
			Gate:         failover.GateAutomatic,
		}
		if g.Gate == "manual" {
			group.Gate = failover.GateManual
		}
		if group.PollInterval <= 0 {
			group.PollInterval = tun.ProbePollInterval
		}
		if g.ProbeCommand != "" {
			group.Probe = newProbe(g.ProbeCommand)
		}
		plan.Groups = append(plan.Groups, group)
	}
	return plan
}
