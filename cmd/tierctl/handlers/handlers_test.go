package handlers

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierctl/tierctl/internal/config"
	"github.com/tierctl/tierctl/internal/executor"
	"github.com/tierctl/tierctl/internal/graph"
	"github.com/tierctl/tierctl/internal/observe"
	"github.com/tierctl/tierctl/internal/secretbind"
)

// fastTunables keeps retries and polling far below test timeouts.
func fastTunables() *config.Tunables {
	return &config.Tunables{
		LockMaxWait:      200 * time.Millisecond,
		LockPollInterval: 5 * time.Millisecond,
		RetryMaxAttempts: 2,
		RetryBaseDelay:   time.Millisecond,
		RetryMultiplier:  2.0,
		RetryMaxDelay:    10 * time.Millisecond,
	}
}

// fakeAction converges based on the payload's "result" entry and surfaces
// the "principal" entry as the node's principal_ref output.
func fakeAction(_ observe.Observer) executor.Action {
	return func(_ context.Context, payload map[string]string) (map[string]string, error) {
		if payload["result"] == "fail" {
			return nil, errors.New("bootstrap exploded")
		}
		if p := payload["principal"]; p != "" {
			return map[string]string{"principal_ref": p}, nil
		}
		return nil, nil
	}
}

// bindRecorder records every binding request it receives.
type bindRecorder struct {
	mu    sync.Mutex
	bound []string
}

func (r *bindRecorder) client(observe.Observer) secretbind.BindingClient {
	return secretbind.BindingClientFunc(func(_ context.Context, vaultRef, principalRef string) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.bound = append(r.bound, vaultRef+"/"+principalRef)
		return nil
	})
}

func writePlan(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func TestDeploy_Success(t *testing.T) {
	origTunables, origAction, origClient := loadTunables, newBootstrapAction, newBindingClient
	defer func() {
		loadTunables, newBootstrapAction, newBindingClient = origTunables, origAction, origClient
	}()
	loadTunables = fastTunables
	newBootstrapAction = fakeAction
	recorder := &bindRecorder{}
	newBindingClient = recorder.client

	plan := writePlan(t, `
name: "stack"
resources:
  - id: "db"
    payload:
      principal: "db-principal-0001"
  - id: "app"
    depends_on: ["db"]
secret_bindings:
  - vault_ref: "vault-main"
    node_id: "db"
`)

	var out bytes.Buffer
	err := Deploy(context.Background(), DeployOptions{
		PlanPath: plan,
		Out:      &out,
		Observer: observe.Nop,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "stack: completed")
	assert.Contains(t, out.String(), "accepted db-principal-0001")
	assert.Equal(t, []string{"vault-main/db-principal-0001"}, recorder.bound)
}

func TestDeploy_PartialFailureStillBinds(t *testing.T) {
	origTunables, origAction, origClient := loadTunables, newBootstrapAction, newBindingClient
	defer func() {
		loadTunables, newBootstrapAction, newBindingClient = origTunables, origAction, origClient
	}()
	loadTunables = fastTunables
	newBootstrapAction = fakeAction
	recorder := &bindRecorder{}
	newBindingClient = recorder.client

	plan := writePlan(t, `
name: "stack"
resources:
  - id: "db"
    payload:
      result: "fail"
  - id: "app"
    depends_on: ["db"]
  - id: "cache"
    payload:
      principal: "cache-principal-01"
secret_bindings:
  - vault_ref: "vault-main"
    node_id: "db"
  - vault_ref: "vault-main"
    node_id: "cache"
`)

	var out bytes.Buffer
	err := Deploy(context.Background(), DeployOptions{
		PlanPath: plan,
		Out:      &out,
		Observer: observe.Nop,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partially failed")

	// The independent cache node converged and its principal was bound;
	// the failed db contributed an empty candidate that was dropped.
	assert.Contains(t, out.String(), "partially_failed")
	assert.Contains(t, out.String(), "skipped nodes: [app]")
	assert.Contains(t, out.String(), `rejected ""`)
	assert.Equal(t, []string{"vault-main/cache-principal-01"}, recorder.bound)
}

func TestDeploy_LoadError(t *testing.T) {
	var out bytes.Buffer
	err := Deploy(context.Background(), DeployOptions{
		PlanPath: "/nonexistent/plan.yaml",
		Out:      &out,
		Observer: observe.Nop,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading plan document")
}

const failoverPlan = `
name: "stack"
resources:
  - id: "db"
  - id: "app"
    depends_on: ["db"]
  - id: "web"
    depends_on: ["app"]
recovery:
  groups:
    - name: "data"
      members: ["db"]
      gate: "automatic"
    - name: "frontend"
      members: ["app", "web"]
      gate: "manual"
`

func TestFailover_ResumeGatesFlag(t *testing.T) {
	origTunables, origAction := loadTunables, newBootstrapAction
	defer func() {
		loadTunables, newBootstrapAction = origTunables, origAction
	}()
	loadTunables = fastTunables
	newBootstrapAction = fakeAction

	var out bytes.Buffer
	err := Failover(context.Background(), FailoverOptions{
		PlanPath:    writePlan(t, failoverPlan),
		ResumeGates: true,
		Out:         &out,
		Observer:    observe.Nop,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "succeeded")
	assert.Contains(t, out.String(), `group "data": completed`)
	assert.Contains(t, out.String(), `group "frontend": completed`)
}

func TestFailover_ManualGatePrompt(t *testing.T) {
	origTunables, origAction := loadTunables, newBootstrapAction
	defer func() {
		loadTunables, newBootstrapAction = origTunables, origAction
	}()
	loadTunables = fastTunables
	newBootstrapAction = fakeAction

	var out bytes.Buffer
	err := Failover(context.Background(), FailoverOptions{
		PlanPath: writePlan(t, failoverPlan),
		Out:      &out,
		In:       strings.NewReader("\n"),
		Observer: observe.Nop,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "press Enter to release the gate")
	assert.Contains(t, out.String(), "succeeded")
}

func TestFailover_GateNeverReleased(t *testing.T) {
	origTunables, origAction := loadTunables, newBootstrapAction
	defer func() {
		loadTunables, newBootstrapAction = origTunables, origAction
	}()
	loadTunables = fastTunables
	newBootstrapAction = fakeAction

	var out bytes.Buffer
	err := Failover(context.Background(), FailoverOptions{
		PlanPath: writePlan(t, failoverPlan),
		Out:      &out,
		In:       strings.NewReader(""),
		Observer: observe.Nop,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never released")
}

func TestFailover_MemberFailureFailsRun(t *testing.T) {
	origTunables, origAction := loadTunables, newBootstrapAction
	defer func() {
		loadTunables, newBootstrapAction = origTunables, origAction
	}()
	loadTunables = fastTunables
	newBootstrapAction = fakeAction

	var out bytes.Buffer
	err := Failover(context.Background(), FailoverOptions{
		PlanPath: writePlan(t, `
name: "stack"
resources:
  - id: "db"
    payload:
      result: "fail"
  - id: "app"
recovery:
  groups:
    - name: "data"
      members: ["db"]
    - name: "frontend"
      members: ["app"]
`),
		ResumeGates: true,
		Out:         &out,
		Observer:    observe.Nop,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `boot group "data"`)
	assert.Contains(t, out.String(), "failed")
	// The second group never ran.
	assert.NotContains(t, out.String(), `group "frontend"`)
}

func TestFailover_NoRecoverySection(t *testing.T) {
	err := Failover(context.Background(), FailoverOptions{
		PlanPath: writePlan(t, "name: x\nresources:\n  - id: db\n"),
		Out:      &bytes.Buffer{},
		Observer: observe.Nop,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recovery section")
}

func TestValidate(t *testing.T) {
	plan := writePlan(t, `
name: "stack"
resources:
  - id: "db"
  - id: "app"
    depends_on: ["db"]
  - id: "legacy"
    include: false
secret_bindings:
  - vault_ref: "vault-main"
    node_id: "db"
recovery:
  groups:
    - name: "data"
      members: ["db"]
`)

	var out bytes.Buffer
	require.NoError(t, Validate(ValidateOptions{PlanPath: plan, Out: &out}))

	assert.Contains(t, out.String(), `plan "stack" is valid: 2 nodes (1 omitted)`)
	assert.Contains(t, out.String(), "secret bindings: 1")
	assert.Contains(t, out.String(), "data: 1 members, automatic gate")
}

func TestValidate_CycleDetected(t *testing.T) {
	plan := writePlan(t, `
resources:
  - id: "a"
    depends_on: ["b"]
  - id: "b"
    depends_on: ["a"]
`)

	err := Validate(ValidateOptions{PlanPath: plan, Out: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestNewTaskBuilder_RetryOverrides(t *testing.T) {
	doc, err := config.Parse([]byte(`
resources:
  - id: "db"
    contended_resource: "pkg-lock"
    max_wait: 90s
    retry:
      max_attempts: 3
      base_delay: 2s
  - id: "app"
`))
	require.NoError(t, err)

	tun := fastTunables()
	build := newTaskBuilder(doc, tun, fakeAction(observe.Nop))

	specs := nodeSpecs(doc)
	require.Len(t, specs, 2)

	db := build(nodeFor(t, doc, "db"))
	assert.Equal(t, "pkg-lock", db.ContendedResource)
	assert.Equal(t, 90*time.Second, db.MaxWait)
	assert.Equal(t, 3, db.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, db.Retry.BaseDelay)
	assert.Equal(t, tun.RetryMultiplier, db.Retry.Multiplier)

	app := build(nodeFor(t, doc, "app"))
	assert.Empty(t, app.ContendedResource)
	assert.Equal(t, tun.LockMaxWait, app.MaxWait)
	assert.Equal(t, tun.RetryMaxAttempts, app.Retry.MaxAttempts)
}

func nodeFor(t *testing.T, doc *config.Document, id string) *graph.ResourceNode {
	t.Helper()
	plan, err := graph.Build(nodeSpecs(doc))
	require.NoError(t, err)
	node := plan.Node(id)
	require.NotNil(t, node, "no resource %q", id)
	return node
}
