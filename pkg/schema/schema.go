package schema

import "time"

// Config is the whole station profile. It is threaded explicitly into every
// step so each one can run against a relocated root in tests.
type Config struct {
	Account           string `yaml:"account"`
	Home              string `yaml:"home"`
	PrivilegedAccount string `yaml:"privileged_account"`
	Hostname          string `yaml:"hostname,omitempty"`

	Boot       BootConfig       `yaml:"boot"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Buses      []Bus            `yaml:"buses"`
	Probe      ProbeConfig      `yaml:"probe"`
	Source     SourceConfig     `yaml:"source"`
	Driver     DriverConfig     `yaml:"driver"`
	Targets    []BuildTarget    `yaml:"targets"`
	Bringup    BringupConfig    `yaml:"bringup"`
	Autostart  AutostartConfig  `yaml:"autostart"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Credential CredentialConfig `yaml:"credential"`

	HookPaths []string `yaml:"hook_paths"`
}

// Directive is a `dtparam=<key>=<value>` line in the boot configuration.
type Directive struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

type BootConfig struct {
	// Candidates are tried independently, missing ones are skipped.
	Candidates []string    `yaml:"candidates"`
	Directives []Directive `yaml:"directives"`
	Overlays   []string    `yaml:"overlays"`
}

type RuntimeConfig struct {
	OverlayFamily string   `yaml:"overlay_family"` // e.g. spi1-
	Overlay       string   `yaml:"overlay"`        // e.g. spi1-1cs
	Modules       []string `yaml:"modules"`
}

type Bus struct {
	Name    string `yaml:"name"`
	Device  string `yaml:"device"`
	Primary bool   `yaml:"primary,omitempty"`
}

type ProbeConfig struct {
	Attempts uint          `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`
}

// SourceConfig describes the pinned tarball and the two subpaths taken from it.
type SourceConfig struct {
	ArchiveURL      string `yaml:"archive_url"`
	FirmwareDir     string `yaml:"firmware_dir"`
	LoggerScript    string `yaml:"logger_script"`
	StripComponents int    `yaml:"strip_components"`
}

type DriverConfig struct {
	URL          string `yaml:"url"`
	Ref          string `yaml:"ref"`
	Dir          string `yaml:"dir"`
	BuildCommand string `yaml:"build_command"`
}

// BuildTarget is one firmware helper. Repair is only set for targets whose
// primary rule cannot be trusted to resolve their link dependencies.
type BuildTarget struct {
	Name   string      `yaml:"name"`
	Dir    string      `yaml:"dir"`
	Clean  string      `yaml:"clean"`
	Build  string      `yaml:"build"`
	Repair *RepairRule `yaml:"repair,omitempty"`
}

type RepairRule struct {
	Artifacts []string `yaml:"artifacts"`
	Source    string   `yaml:"source"`
	Object    string   `yaml:"object"`
	Output    string   `yaml:"output"`
	Library   string   `yaml:"library"`
	Compiler  string   `yaml:"compiler"`
}

type BuildOutcome string

const (
	BuildSuccess        BuildOutcome = "SUCCESS"
	BuildFailedRepaired BuildOutcome = "FAILED_WITH_FALLBACK_APPLIED"
	BuildFailed         BuildOutcome = "FAILED"
)

type BuildResult struct {
	Target  string
	Outcome BuildOutcome
	Err     error
}

type BringupConfig struct {
	Loader    string `yaml:"loader"`
	Bitstream string `yaml:"bitstream"`
	HV        string `yaml:"hv"`
	HVValue   string `yaml:"hv_value"`
	DAC       string `yaml:"dac"`
	Channels  int    `yaml:"channels"`
	DACLevel  string `yaml:"dac_level"`
}

// LaunchTask is a long running station task started from the autostart script.
type LaunchTask struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
	Log     string `yaml:"log"`
}

type AutostartConfig struct {
	Sources     []string     `yaml:"sources"`
	Path        string       `yaml:"path"`
	Interpreter string       `yaml:"interpreter"`
	Tasks       []LaunchTask `yaml:"tasks"`
	ServiceName string       `yaml:"service_name"`
	ServiceDir  string       `yaml:"service_dir"`
}

type ScheduleConfig struct {
	Source  string `yaml:"source"`
	Path    string `yaml:"path"`
	Cadence string `yaml:"cadence"`
}

// CredentialConfig only carries the key location, the algorithm is always ed25519.
type CredentialConfig struct {
	KeyPath string `yaml:"key_path"`
}

type BusState string

const (
	BusPresent BusState = "PRESENT"
	BusMissing BusState = "MISSING"
)

// BusReport is observed fresh on every run and never persisted.
type BusReport map[string]BusState

// AllPresent reports whether every bus in the report was observed.
func (b BusReport) AllPresent() bool {
	if len(b) == 0 {
		return false
	}
	for _, st := range b {
		if st != BusPresent {
			return false
		}
	}
	return true
}

// PrimaryBus returns the bus bring-up depends on, the first one if none is flagged.
func (c Config) PrimaryBus() (Bus, bool) {
	for _, b := range c.Buses {
		if b.Primary {
			return b, true
		}
	}
	if len(c.Buses) > 0 {
		return c.Buses[0], true
	}
	return Bus{}, false
}

// BringupMode is decided once per run from the primary bus state.
type BringupMode string

const (
	BringupSkip BringupMode = "SKIP"
	BringupRun  BringupMode = "RUN"
)
