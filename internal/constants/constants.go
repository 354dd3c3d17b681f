package constants

import "errors"

// DefaultHookPaths are scanned for yip stages when the profile does not set any.
func DefaultHookPaths() []string {
	return []string{"/etc/stationcore/conf.d", "/oem/stationcore"}
}

var (
	ErrNoCandidates  = errors.New("no candidate locations configured")
	ErrBusMissing    = errors.New("device node not present")
	ErrNotPrivileged = errors.New("must be run as root")
	ErrUnknownStep   = errors.New("unknown step")
)

const (
	OpStageBefore   = "stage-before"
	OpPatchBoot     = "patch-boot-config"
	OpActivateBuses = "activate-buses"
	OpProbeBuses    = "probe-buses"
	OpFetchSource   = "fetch-source"
	OpBuildDriver   = "build-dependency"
	OpBuildFirmware = "build-firmware"
	OpBringup       = "hardware-bringup"
	OpAutostart     = "install-autostart"
	OpSchedule      = "install-schedule"
	OpCredential    = "provision-credential"
	OpStageAfter    = "stage-after"

	StageName = "stationcore"

	LogDir            = "/var/log/stationcore"
	DefaultConfigFile = "/etc/stationcore/config.yaml"
	DefaultEnvFile    = "/etc/stationcore/station.env"

	PublicKeyHeader = "==== PUBLIC KEY ===="
	PublicKeyFooter = "===================="
)
