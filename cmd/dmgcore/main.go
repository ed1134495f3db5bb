package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	"github.com/embercore/gbdmg/dmg/backend"
	"github.com/embercore/gbdmg/dmg/backend/headless"
	"github.com/embercore/gbdmg/dmg/backend/sdl2"
	"github.com/embercore/gbdmg/dmg/backend/terminal"
	"github.com/embercore/gbdmg/dmg/machine"
)

func main() {
	app := cli.NewApp()
	app.Name = "dmgcore"
	app.Description = "A cycle-accurate Game Boy (DMG) emulator core"
	app.Usage = "dmgcore [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "backend",
			Usage: "Frontend to run: headless, terminal or sdl2",
			Value: "terminal",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run (required for --backend headless)",
			Value: 0,
		},
		cli.StringFlag{
			Name:  "save-dir",
			Usage: "Directory to save headless frame snapshots (default: temp directory)",
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save a headless frame snapshot every N frames (0 = disabled)",
			Value: 0,
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("dmgcore exited with an error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		cli.ShowAppHelp(c)
		return errors.New("no ROM path provided")
	}
	romPath := c.Args().Get(0)

	m, err := machine.NewWithFile(romPath)
	if err != nil {
		return fmt.Errorf("failed to load ROM: %w", err)
	}

	b, err := newBackend(c, romPath)
	if err != nil {
		return err
	}

	return b.Run(m)
}

func newBackend(c *cli.Context, romPath string) (backend.Backend, error) {
	switch c.String("backend") {
	case "headless":
		frames := c.Int("frames")
		if frames <= 0 {
			return nil, errors.New("--backend headless requires --frames with a positive value")
		}

		saveDir := c.String("save-dir")
		interval := c.Int("snapshot-interval")
		if interval > 0 && saveDir == "" {
			tempDir, err := os.MkdirTemp("", "dmgcore-snapshots-*")
			if err != nil {
				return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
			}
			saveDir = tempDir
		}

		romName := strings.TrimSuffix(filepath.Base(romPath), filepath.Ext(romPath))
		return &headless.Backend{
			Frames:           frames,
			SaveDir:          saveDir,
			SnapshotInterval: interval,
			ROMName:          romName,
		}, nil

	case "sdl2":
		return sdl2.New()

	case "terminal":
		return terminal.New()

	default:
		return nil, fmt.Errorf("unknown backend %q (want headless, terminal or sdl2)", c.String("backend"))
	}
}
