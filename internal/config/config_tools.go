package config

// ToolsConfig configures the Tool Surface: the sandbox roots the Path
// Validator enforces, and execution limits for subprocess tools.
type ToolsConfig struct {
	Sandbox   SandboxConfig       `yaml:"sandbox"`
	Execution ToolExecutionConfig `yaml:"execution"`
}

// SandboxConfig lists the allowed filesystem roots, mirroring
// pathguard.New's roots argument.
type SandboxConfig struct {
	Roots []string `yaml:"roots"`
}

// ToolExecutionConfig holds subprocess tool retry/timeout settings. No code
// outside this package reads these fields: the orchestrator's retry budget
// and the exec tools' probe delay and stop grace period are fixed constants.
type ToolExecutionConfig struct {
	// MaxToolRetries is loaded from max_tool_retries; the orchestrator
	// uses its own MaxToolRetries constant (10) instead.
	MaxToolRetries int `yaml:"max_tool_retries"`

	// ProbeDelaySeconds is loaded from probe_delay_seconds;
	// start_background_process always waits a fixed 2s before its
	// liveness probe.
	ProbeDelaySeconds int `yaml:"probe_delay_seconds"`

	// TerminateGraceSeconds is loaded from terminate_grace_seconds;
	// stop_background_process always waits a fixed 5s after SIGTERM
	// before escalating to SIGKILL.
	TerminateGraceSeconds int `yaml:"terminate_grace_seconds"`
}
