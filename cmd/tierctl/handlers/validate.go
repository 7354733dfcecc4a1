package handlers

import (
	"fmt"
	"io"
	"os"

	"github.com/tierctl/tierctl/internal/graph"
)

// ValidateOptions configures plan validation.
type ValidateOptions struct {
	// PlanPath is the plan document to check.
	PlanPath string
	// Out receives the summary. Nil selects stdout.
	Out io.Writer
}

// Validate loads a plan document and builds its dependency graph without
// provisioning anything. It surfaces the same errors a deploy would hit
// before the first node starts.
func Validate(opts ValidateOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	doc, err := loadDocument(opts.PlanPath)
	if err != nil {
		return err
	}

	plan, err := graph.Build(nodeSpecs(doc))
	if err != nil {
		return err
	}

	omitted := len(doc.Resources) - plan.Len()
	fmt.Fprintf(out, "plan %q is valid: %d nodes", doc.Name, plan.Len())
	if omitted > 0 {
		fmt.Fprintf(out, " (%d omitted)", omitted)
	}
	fmt.Fprintln(out)

	if len(doc.SecretBindings) > 0 {
		fmt.Fprintf(out, "  secret bindings: %d\n", len(doc.SecretBindings))
	}
	if doc.Recovery != nil {
		fmt.Fprintf(out, "  recovery groups: %d\n", len(doc.Recovery.Groups))
		for _, g := range doc.Recovery.Groups {
			gate := g.Gate
			if gate == "" {
				gate = "automatic"
			}
			fmt.Fprintf(out, "    %s: %d members, %s gate\n", g.Name, len(g.Members), gate)
		}
	}
	return nil
}
