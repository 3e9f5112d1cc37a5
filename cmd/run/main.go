package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/slambench/runner/internal/repository/dto"
	"github.com/slambench/runner/internal/supervisor"
)

var scriptLabel = color.New(color.FgMagenta).Sprint("[bench-run]")

func main() {
	cmd := &cli.Command{
		Name:  "bench-run",
		Usage: "run a single baseline command under the resource supervisor",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "command", Aliases: []string{"c"}, Required: true, Usage: "fully formed baseline command line"},
			&cli.StringFlag{Name: "exp-folder", Aliases: []string{"f"}, Required: true, Usage: "folder for the run log and the expected artifact"},
			&cli.IntFlag{Name: "run-index", Aliases: []string{"i"}, Value: 0},
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Value: time.Hour},
			&cli.StringFlag{Name: "artifact", Aliases: []string{"a"}, Value: "KeyFrameTrajectory", Usage: "artifact basename expected in the exp folder"},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, nil)))

	req := &dto.RunRequest{
		Command:          cmd.String("command"),
		ExpFolder:        cmd.String("exp-folder"),
		RunIndex:         int(cmd.Int("run-index")),
		Timeout:          cmd.Duration("timeout"),
		ArtifactBaseName: cmd.String("artifact"),
	}
	fmt.Printf("%s log file: %s\n", scriptLabel, req.LogFilePath())

	sup := supervisor.New(supervisor.Config{})
	res, err := sup.Execute(req)
	if err != nil {
		return err
	}

	gpu := "N/A"
	if res.GpuPeakGb != nil {
		gpu = fmt.Sprintf("%.2f", *res.GpuPeakGb)
	}
	fmt.Printf("%s success=%v ram_peak=%.2fGB swap_peak=%.2fGB gpu_peak=%sGB\n",
		scriptLabel, res.Success, res.RamPeakGb, res.SwapPeakGb, gpu)
	if res.Comments != "" {
		fmt.Println(res.Comments)
	}
	if !res.Success {
		return cli.Exit("", 1)
	}
	return nil
}
