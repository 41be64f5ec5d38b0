package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	accel "github.com/chiyanglin-AStar/rust-gpu-accel-framework"
)

type deviceReport struct {
	Ordinal     int    `json:"ordinal"`
	Name        string `json:"name"`
	TotalMemory uint64 `json:"total_memory_bytes"`
	APIVersion  uint32 `json:"api_version"`
	Simulated   bool   `json:"simulated"`
}

func devicesCmd() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:  "devices",
		Usage: "List the devices the driver exposes",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "emit machine-readable JSON",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			reports, err := collectDevices()
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			for _, r := range reports {
				note := ""
				if r.Simulated {
					note = " (simulated)"
				}
				fmt.Printf("#%d  %s%s\n", r.Ordinal, r.Name, note)
				fmt.Printf("    memory: %s, driver API version: %d\n",
					humanBytes(r.TotalMemory), r.APIVersion)
			}
			return nil
		},
	}
}

func collectDevices() ([]deviceReport, error) {
	count, err := accel.DeviceCount()
	if err != nil {
		return nil, err
	}
	reports := make([]deviceReport, 0, count)
	for i := 0; i < count; i++ {
		dev, err := accel.NthDevice(i)
		if err != nil {
			return nil, err
		}
		name, err := dev.Name()
		if err != nil {
			return nil, err
		}
		total, err := dev.TotalMemory()
		if err != nil {
			return nil, err
		}
		ctx, err := dev.CreateContext()
		if err != nil {
			return nil, err
		}
		version, err := ctx.APIVersion()
		if cerr := ctx.Destroy(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
		reports = append(reports, deviceReport{
			Ordinal:     i,
			Name:        name,
			TotalMemory: total,
			APIVersion:  version,
			Simulated:   accel.UsingSimulator(),
		})
	}
	return reports, nil
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
