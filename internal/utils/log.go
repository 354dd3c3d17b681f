package utils

import (
	"os"

	"github.com/cosmicwatch/stationcore/internal/constants"
	"github.com/kairos-io/kairos-sdk/types"
	"github.com/rs/zerolog"
)

// KLog is the generic KairosLogger, handed to yip so hook stages log through it.
var KLog types.KairosLogger

// Log is the zerolog logger every step writes to. Silent until SetLogger runs.
var Log = zerolog.Nop()

func SetLogger(debug bool) {
	level := "info"

	if debug || os.Getenv("STATIONCORE_DEBUG") != "" {
		level = "debug"
	}
	_ = os.MkdirAll(constants.LogDir, os.ModeDir|os.ModePerm)

	KLog = types.NewKairosLoggerWithExtraDirs("stationcore", level, false, constants.LogDir)
	Log = KLog.Logger
}

// WithRun tags every following line with the id of the current run.
func WithRun(id string) {
	Log = Log.With().Str("run", id).Logger()
}
