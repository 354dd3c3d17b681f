package profile

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cosmicwatch/stationcore/internal/constants"
	"github.com/cosmicwatch/stationcore/pkg/schema"
)

const (
	DefaultAccount = "cosmic"
	DefaultRef     = "v1.4.2"
)

// Station returns the one station profile this tool knows how to converge.
// Loaded configuration only overrides pieces of it.
func Station() schema.Config {
	home := filepath.Join("/home", DefaultAccount)
	firmware := filepath.Join(home, "firmware")
	logs := filepath.Join(home, "logs")
	host, _ := os.Hostname()

	return schema.Config{
		Account:           DefaultAccount,
		Home:              home,
		PrivilegedAccount: "root",
		Hostname:          host,
		Boot: schema.BootConfig{
			Candidates: []string{"/boot/firmware/config.txt", "/boot/config.txt"},
			Directives: []schema.Directive{
				{Key: "i2c_arm", Value: "on"},
				{Key: "spi", Value: "on"},
			},
			Overlays: []string{"spi1-1cs"},
		},
		Runtime: schema.RuntimeConfig{
			OverlayFamily: "spi1-",
			Overlay:       "spi1-1cs",
			Modules:       []string{"i2c-dev", "i2c-bcm2835", "spi-bcm2835"},
		},
		Buses: []schema.Bus{
			{Name: "i2c", Device: "/dev/i2c-1"},
			{Name: "spi", Device: "/dev/spidev0.0", Primary: true},
		},
		Probe: schema.ProbeConfig{Attempts: 5, Interval: time.Second},
		Source: schema.SourceConfig{
			ArchiveURL:      "https://codeload.github.com/cosmicwatch/station/tar.gz/refs/tags/" + DefaultRef,
			FirmwareDir:     "firmware",
			LoggerScript:    "bmp280_log.py",
			StripComponents: 1,
		},
		Driver: schema.DriverConfig{
			URL:          "https://github.com/WiringPi/WiringPi.git",
			Ref:          "3.10",
			Dir:          filepath.Join(home, "WiringPi"),
			BuildCommand: "./build",
		},
		Targets: []schema.BuildTarget{
			{Name: "loader", Dir: filepath.Join(firmware, "loader"), Clean: "make clean", Build: "make"},
			{Name: "hv", Dir: filepath.Join(firmware, "hv"), Clean: "make clean", Build: "make"},
			{Name: "dac", Dir: filepath.Join(firmware, "dac"), Clean: "make clean", Build: "make"},
			{
				Name:  "daq",
				Dir:   filepath.Join(firmware, "daq"),
				Clean: "make clean",
				Build: "make",
				Repair: &schema.RepairRule{
					Artifacts: []string{"daq", "daq.o"},
					Source:    "daq.c",
					Object:    "daq.o",
					Output:    "daq",
					Library:   "wiringPi",
					Compiler:  "gcc",
				},
			},
		},
		Bringup: schema.BringupConfig{
			Loader:    filepath.Join(firmware, "loader", "load_bitstream"),
			Bitstream: filepath.Join(firmware, "bitstream", "station_top.bit"),
			HV:        filepath.Join(firmware, "hv", "hvset"),
			HVValue:   "1700",
			DAC:       filepath.Join(firmware, "dac", "dacset"),
			Channels:  8,
			DACLevel:  "0",
		},
		Autostart: schema.AutostartConfig{
			Sources: []string{
				"https://raw.githubusercontent.com/cosmicwatch/station/" + DefaultRef + "/boot/rc.local",
				"https://gitlab.com/cosmicwatch/station/-/raw/" + DefaultRef + "/boot/rc.local",
			},
			Path:        "/etc/rc.local",
			Interpreter: "#!/bin/sh -e",
			Tasks: []schema.LaunchTask{
				{Name: "daq", Command: filepath.Join(firmware, "daq", "daq"), Log: filepath.Join(logs, "daq.log")},
				{Name: "env-logger", Command: filepath.Join(home, "bmp280_log.py"), Log: filepath.Join(logs, "bmp280.log")},
			},
			ServiceName: "rc-local.service",
			ServiceDir:  "/etc/systemd/system",
		},
		Schedule: schema.ScheduleConfig{
			Source:  "https://raw.githubusercontent.com/cosmicwatch/station/" + DefaultRef + "/scripts/transfer.sh",
			Path:    filepath.Join(home, "transfer.sh"),
			Cadence: "0 */6 * * *",
		},
		Credential: schema.CredentialConfig{
			KeyPath: filepath.Join(home, ".ssh", "id_ed25519"),
		},
		HookPaths: constants.DefaultHookPaths(),
	}
}
