package config

// Document is the top-level plan document.
type Document struct {
	// Name labels the deployment in logs and reports.
	Name string `yaml:"name"`

	Resources      []ResourceSpec `yaml:"resources"`
	SecretBindings []BindingSpec  `yaml:"secret_bindings,omitempty"`
	Recovery       *RecoverySpec  `yaml:"recovery,omitempty"`
}

// ResourceSpec is one resource record. The payload is opaque to the
// orchestrator; the remaining fields steer scheduling and convergence.
type ResourceSpec struct {
	ID        string            `yaml:"id"`
	DependsOn []string          `yaml:"depends_on,omitempty"`
	Payload   map[string]string `yaml:"payload,omitempty"`

	// Include marks a conditionally-declared resource. Nil means included;
	// a false value omits the node before graph construction.
	Include *bool `yaml:"include,omitempty"`

	// ContendedResource names an external lock the bootstrap task waits on.
	ContendedResource string   `yaml:"contended_resource,omitempty"`
	MaxWait           Duration `yaml:"max_wait,omitempty"`

	Retry *RetrySpec `yaml:"retry,omitempty"`
}

// Omitted reports whether the resource was conditionally excluded.
func (r ResourceSpec) Omitted() bool {
	return r.Include != nil && !*r.Include
}

// RetrySpec overrides the default retry policy for one resource.
type RetrySpec struct {
	MaxAttempts int      `yaml:"max_attempts,omitempty"`
	BaseDelay   Duration `yaml:"base_delay,omitempty"`
	Multiplier  float64  `yaml:"multiplier,omitempty"`
	MaxDelay    Duration `yaml:"max_delay,omitempty"`
}

// BindingSpec requests that a node's surfaced principal be bound to a vault.
type BindingSpec struct {
	VaultRef string `yaml:"vault_ref"`
	NodeID   string `yaml:"node_id"`
	// OutputKey selects which node output carries the principal reference.
	// Empty selects "principal_ref".
	OutputKey string `yaml:"output_key,omitempty"`
}

// DefaultOutputKey is the node output consulted when a binding spec does not
// name one.
const DefaultOutputKey = "principal_ref"

// Key returns the output key the binding reads.
func (b BindingSpec) Key() string {
	if b.OutputKey == "" {
		return DefaultOutputKey
	}
	return b.OutputKey
}

// RecoverySpec declares the failover boot groups.
type RecoverySpec struct {
	Groups []GroupSpec `yaml:"groups"`
}

// GroupSpec is one boot group record.
type GroupSpec struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
	Gate    string   `yaml:"gate"`

	// ProbeCommand, when set, is the group's wait condition: it is run
	// repeatedly and the group is considered live once it exits zero.
	ProbeCommand string   `yaml:"probe_command,omitempty"`
	WaitTimeout  Duration `yaml:"wait_timeout,omitempty"`
	PollInterval Duration `yaml:"poll_interval,omitempty"`
}
