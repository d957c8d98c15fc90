// SPDX-License-Identifier: GPL-2.0-or-later

// Command depthrec records and replays depth capture sessions.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"depthrec/pkg/framestore"
	"depthrec/pkg/log"
	"depthrec/pkg/sensor"
	"depthrec/pkg/storage"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "depthrec",
		Usage: "record and replay depth capture sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env",
				Usage: "path to env.yaml",
			},
		},
		Commands: []*cli.Command{
			recordCommand(),
			infoCommand(),
			dumpCommand(),
			playCommand(),
			recoverCommand(),
			sessionsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadEnv(c *cli.Context) (*storage.ConfigEnv, error) {
	envPath := c.String("env")
	if envPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		return storage.NewConfigEnv(filepath.Join(wd, "env.yaml"), nil)
	}

	envPath, err := filepath.Abs(envPath)
	if err != nil {
		return nil, fmt.Errorf("absolute path of env.yaml: %w", err)
	}
	envYAML, err := os.ReadFile(envPath)
	if err != nil {
		return nil, fmt.Errorf("read env.yaml: %w", err)
	}
	return storage.NewConfigEnv(envPath, envYAML)
}

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "record a session from the synthetic depth source",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "frames", Value: 100, Usage: "number of frames to record"},
			&cli.UintFlag{Name: "width", Usage: "override sensor width"},
			&cli.UintFlag{Name: "height", Usage: "override sensor height"},
			&cli.IntFlag{Name: "level", Usage: "override zstd compression level"},
		},
		Action: record,
	}
}

func record(c *cli.Context) error {
	env, err := loadEnv(c)
	if err != nil {
		return err
	}
	if err := env.PrepareEnvironment(); err != nil {
		return err
	}

	width := env.SensorWidth
	if c.Uint("width") != 0 {
		width = uint32(c.Uint("width"))
	}
	height := env.SensorHeight
	if c.Uint("height") != 0 {
		height = uint32(c.Uint("height"))
	}
	level := env.CompressionLevel
	if c.Int("level") != 0 {
		level = c.Int("level")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := &sync.WaitGroup{}
	logger := log.NewLogger(wg)
	logger.Start(ctx)
	go logger.LogToStdout(ctx)

	manager := storage.NewManager(env.StorageDir, env.MaxDiskUsage, logger)

	logDB := log.NewDB(manager.LogDBPath(), wg)
	if err := logDB.Init(ctx); err != nil {
		return err
	}
	go logDB.SaveLogs(ctx, logger)
	go manager.PurgeLoop(ctx, 10*time.Minute)

	usage, err := manager.DiskUsage(time.Minute)
	if err != nil {
		return err
	}
	if usage.Percent >= env.MaxDiskUsage {
		return fmt.Errorf("disk usage %d%% is above the %d%% limit",
			usage.Percent, env.MaxDiskUsage)
	}

	startTime := time.Now()
	session := storage.NewSession(manager.SessionsDir(), startTime)

	w, err := framestore.NewWriterOptions(session.Path,
		framestore.WriterOptions{CompressionLevel: level})
	if err != nil {
		return err
	}

	src := sensor.NewSynthetic(width, height, c.Int("frames"))
	for {
		frame, err := src.NextFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.Finalize() //nolint:errcheck
			return fmt.Errorf("next frame: %w", err)
		}
		if err := w.Append(frame); err != nil {
			w.Finalize() //nolint:errcheck
			return fmt.Errorf("append frame: %w", err)
		}
	}
	if err := w.Finalize(); err != nil {
		return err
	}

	err = session.WriteData(storage.SessionData{
		FrameCount: w.FrameCount(),
		Width:      width,
		Height:     height,
		Start:      startTime,
		End:        time.Now(),
	})
	if err != nil {
		return err
	}

	logger.Info().
		Src("recorder").
		Session(session.ID).
		Msgf("recorded %d frames to %v", w.FrameCount(), session.Path)

	cancel()
	wg.Wait()
	return nil
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "print container header information",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one file argument")
			}
			path := c.Args().First()

			info, err := framestore.Probe(path)
			if err != nil {
				return err
			}

			fmt.Printf("file:   %v\n", path)
			fmt.Printf("size:   %d bytes\n", info.Size)
			fmt.Printf("frames: %d\n", info.FrameCount)
			if info.Unfinalized {
				fmt.Println("warning: header reports zero frames but data is present," +
					" the writer never finalized. Run 'depthrec recover'.")
			}
			return nil
		},
	}
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:      "dump",
		Usage:     "decode a whole session into memory and summarize it",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one file argument")
			}

			entries, err := framestore.ReadAll(c.Args().First())
			for _, entry := range entries {
				fmt.Printf("frame %d: %dx%d\n",
					entry.Timestamp, entry.Frame.Width, entry.Frame.Height)
			}
			if err != nil {
				return fmt.Errorf("decoding stopped after %d frames: %w", len(entries), err)
			}
			fmt.Printf("%d frames\n", len(entries))
			return nil
		},
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "stream a session frame by frame at a fixed rate",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Value: 33 * time.Millisecond,
				Usage: "delay between frames",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one file argument")
			}

			r, err := framestore.OpenStream(c.Args().First())
			if err != nil {
				return err
			}
			defer r.Close()

			for {
				sf, err := r.Next()
				if errors.Is(err, io.EOF) {
					fmt.Println("end of stream")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Printf("%v %dx%d timestamp=%d\n",
					sf.Progress, sf.Frame.Width, sf.Frame.Height, sf.Timestamp)
				time.Sleep(c.Duration("interval"))
			}
		},
	}
}

func recoverCommand() *cli.Command {
	return &cli.Command{
		Name:      "recover",
		Usage:     "trial-decode an unfinalized or damaged session into a fresh file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "output path, defaults to <file>.recovered.zst"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one file argument")
			}
			path := c.Args().First()

			outPath := c.String("out")
			if outPath == "" {
				outPath = strings.TrimSuffix(path, ".zst") + ".recovered.zst"
			}

			entries, scanErr := framestore.Scan(path)
			if scanErr != nil {
				fmt.Printf("scan stopped early: %v\n", scanErr)
			}
			if len(entries) == 0 {
				return errors.New("no frames could be recovered")
			}

			w, err := framestore.NewWriter(outPath)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if err := w.Append(entry.Frame); err != nil {
					w.Finalize() //nolint:errcheck
					return fmt.Errorf("append frame: %w", err)
				}
			}
			if err := w.Finalize(); err != nil {
				return err
			}

			fmt.Printf("recovered %d frames to %v\n", len(entries), outPath)
			return nil
		},
	}
}

func sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "list recorded sessions",
		Action: func(c *cli.Context) error {
			env, err := loadEnv(c)
			if err != nil {
				return err
			}

			logger := log.NewMockLogger()
			manager := storage.NewManager(env.StorageDir, env.MaxDiskUsage, logger)

			sessions, err := storage.ListSessions(manager.SessionsDir())
			if err != nil {
				return err
			}

			for _, session := range sessions {
				data, err := session.ReadData()
				if err != nil {
					fmt.Printf("%v (no sidecar)\n", session.ID)
					continue
				}
				fmt.Printf("%v %d frames %dx%d %v\n",
					session.ID, data.FrameCount, data.Width, data.Height,
					data.End.Sub(data.Start).Round(time.Second))
			}

			usage, err := manager.DiskUsage(time.Minute)
			if err != nil {
				return err
			}
			fmt.Printf("disk usage: %v (%d%%)\n", usage.Formatted, usage.Percent)
			return nil
		},
	}
}
