package observe

import (
	"testing"

	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleObserver_WithFields(t *testing.T) {
	t.Parallel()
	obs := NewConsoleObserver()

	child := obs.WithFields(map[string]string{"run": "abc", "phase": "deploy"})
	require.NotNil(t, child)

	childObs, ok := child.(*ConsoleObserver)
	require.True(t, ok)
	assert.Equal(t, "abc", childObs.contextFields["run"])
	assert.Equal(t, "deploy", childObs.contextFields["phase"])

	// Parent unmodified.
	assert.Empty(t, obs.contextFields)
}

func TestConsoleObserver_FormatEvent(t *testing.T) {
	t.Parallel()
	obs := NewConsoleObserver()
	msg := obs.formatEvent(Event{
		Type:    EventNodeSucceeded,
		Phase:   "deploy",
		Node:    "db",
		Message: "converged",
		Fields:  map[string]string{"attempts": "2"},
	})
	assert.Equal(t, "node.succeeded [deploy] node=db converged attempts=2", msg)
}

func TestLogrObserver_EventCarriesFields(t *testing.T) {
	t.Parallel()
	var lines []string
	logger := funcr.New(func(prefix, args string) {
		lines = append(lines, args)
	}, funcr.Options{})

	obs := NewLogrObserver(logger).WithFields(map[string]string{"run": "r1"})
	obs.Event(Event{
		Type:    EventNodeFailed,
		Node:    "app",
		Message: "action failed",
	})

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"event"="node.failed"`)
	assert.Contains(t, lines[0], `"node"="app"`)
	assert.Contains(t, lines[0], `"run"="r1"`)
}

func TestLogrObserver_WithFields_MergesParent(t *testing.T) {
	t.Parallel()
	obs := NewLogrObserver(funcr.New(func(string, string) {}, funcr.Options{}))

	child1 := obs.WithFields(map[string]string{"a": "1"}).(*LogrObserver)
	child2 := child1.WithFields(map[string]string{"b": "2"}).(*LogrObserver)

	assert.Equal(t, "1", child2.fields["a"], "should inherit parent fields")
	assert.Equal(t, "2", child2.fields["b"], "should have own fields")
	assert.Empty(t, obs.fields, "root should be unmodified")
}

func TestNopObserver(t *testing.T) {
	t.Parallel()
	// Must never panic, whatever is thrown at it.
	Nop.Printf("x %d", 1)
	Nop.Event(Event{Type: EventRunStarted})
	Nop.Progress("deploy", 1, 2)
	assert.Equal(t, Nop, Nop.WithFields(map[string]string{"k": "v"}))
}
