package cmd

import (
	"fmt"
	"os"

	cnst "github.com/cosmicwatch/stationcore/internal/constants"
	"github.com/cosmicwatch/stationcore/internal/utils"
	"github.com/cosmicwatch/stationcore/internal/version"
	"github.com/cosmicwatch/stationcore/pkg/dag"
	"github.com/cosmicwatch/stationcore/pkg/state"
	"github.com/gofrs/uuid"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
)

var Flags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "station profile overrides",
		Value:   cnst.DefaultConfigFile,
		EnvVars: []string{"STATIONCORE_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "env-file",
		Usage:   "KEY=VALUE overrides",
		Value:   cnst.DefaultEnvFile,
		EnvVars: []string{"STATIONCORE_ENV_FILE"},
	},
	&cli.StringFlag{
		Name:  "root",
		Usage: "relocate every file the steps touch under this directory",
	},
	&cli.BoolFlag{
		Name:    "debug",
		EnvVars: []string{"STATIONCORE_DEBUG"},
	},
	&cli.BoolFlag{
		Name:  "dry-run",
		Usage: "print the steps without running them",
	},
}

var Commands = []*cli.Command{
	{
		Name:   "provision",
		Usage:  "converge this station",
		Action: Provision,
	},
	{
		Name:  "plan",
		Usage: "print the provisioning steps",
		Action: func(c *cli.Context) error {
			s, err := newState(c)
			if err != nil {
				return err
			}
			g := herd.DAG(herd.EnableInit)
			if err := dag.RegisterProvision(s, g); err != nil {
				return err
			}
			fmt.Print(s.WriteDAG(g))
			return nil
		},
	},
	{
		Name:      "step",
		Usage:     "run a single provisioning step",
		ArgsUsage: "<step>",
		Description: fmt.Sprintf(`
Re-runs one step on its own. Known steps:
%v
`, dag.Order),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("step needs exactly one step name", 1)
			}
			if err := checkPrivilege(); err != nil {
				return err
			}
			s, err := newState(c)
			if err != nil {
				return err
			}
			g := herd.DAG(herd.EnableInit)
			if err := dag.RegisterStep(s, g, c.Args().First()); err != nil {
				return err
			}
			return run(c, s, g)
		},
	},
	{
		Name:  "version",
		Usage: "version",
		Action: func(_ *cli.Context) error {
			fmt.Println(version.Get().String())
			return nil
		},
	},
}

// Provision runs every step in order. It is also the default action.
func Provision(c *cli.Context) error {
	if err := checkPrivilege(); err != nil {
		return err
	}
	s, err := newState(c)
	if err != nil {
		return err
	}

	id, err := uuid.NewV4()
	if err == nil {
		utils.WithRun(id.String())
	}
	v := version.Get()
	utils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg("stationcore")

	g := herd.DAG(herd.EnableInit)
	if err := dag.RegisterProvision(s, g); err != nil {
		return err
	}
	return run(c, s, g)
}

func run(c *cli.Context, s *state.State, g *herd.Graph) error {
	utils.Log.Info().Msg(s.WriteDAG(g))
	// Once we print the dag we can exit already
	if c.Bool("dry-run") {
		return nil
	}

	_ = g.Run(c.Context)
	utils.Log.Info().Msg(s.WriteDAG(g))
	fmt.Fprint(s.Out, s.Summary())

	if err := s.Failed(g); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if s.Aborted != nil {
		return cli.Exit(s.Aborted.Error(), 1)
	}
	return nil
}

func checkPrivilege() error {
	if os.Geteuid() != 0 {
		return cli.Exit(cnst.ErrNotPrivileged.Error(), 1)
	}
	return nil
}

func newState(c *cli.Context) (*state.State, error) {
	utils.SetLogger(c.Bool("debug"))

	var fs vfs.FS = vfs.OSFS
	if root := c.String("root"); root != "" && root != "/" {
		fs = vfs.NewPathFS(vfs.OSFS, root)
		utils.Log.Info().Str("root", root).Msg("Relocated root")
	}

	cfg, err := utils.LoadConfig(c.String("config"), c.String("env-file"))
	if err != nil {
		return nil, err
	}
	return state.NewState(cfg, fs), nil
}
