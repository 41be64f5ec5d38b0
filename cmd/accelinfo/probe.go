package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	accel "github.com/chiyanglin-AStar/rust-gpu-accel-framework"
)

const probePTX = `
.version 7.0
.target sm_50
.address_size 64
.visible .entry probe()
{
  ret;
}
`

func probeCmd() *cli.Command {
	var (
		ordinal  int
		elements int
	)
	return &cli.Command{
		Name:  "probe",
		Usage: "Exercise context, memory and module layers end to end",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "device",
				Usage:       "device ordinal to probe",
				Destination: &ordinal,
			},
			&cli.IntFlag{
				Name:        "elements",
				Usage:       "float32 elements to round-trip",
				Value:       1 << 20,
				Destination: &elements,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return probe(ordinal, elements)
		},
	}
}

// probe round-trips a buffer host -> device -> host and launches a
// trivial kernel, reporting each stage.
func probe(ordinal, elements int) error {
	dev, err := accel.NthDevice(ordinal)
	if err != nil {
		return err
	}
	ctx, err := dev.CreateContext()
	if err != nil {
		return err
	}
	defer func() { _ = ctx.Destroy() }()
	fmt.Printf("context: %s\n", ctx)

	src := accel.NewHostMemory[float32](elements)
	for i, s := 0, src.Slice(); i < elements; i++ {
		s[i] = float32(i)
	}
	dmem, err := accel.NewDeviceMemory[float32](ctx, elements)
	if err != nil {
		return err
	}
	defer func() { _ = dmem.Destroy() }()
	if err := dmem.CopyFrom(src); err != nil {
		return err
	}
	dst := accel.NewHostMemory[float32](elements)
	if err := dst.CopyFrom(dmem); err != nil {
		return err
	}
	for i := range dst.Slice() {
		if dst.Slice()[i] != src.Slice()[i] {
			return errors.Errorf("round-trip mismatch at element %d", i)
		}
	}
	fmt.Printf("memory: %d float32 elements round-tripped through %s memory\n",
		elements, dmem.MemoryType())

	mod, err := accel.ModuleFromPTX(ctx, probePTX)
	if err != nil {
		return err
	}
	defer func() { _ = mod.Destroy() }()
	k, err := mod.Kernel("probe")
	if err != nil {
		return err
	}
	if err := k.Launch(accel.GridX(1), accel.BlockX(1)); err != nil {
		return err
	}
	if err := ctx.Sync(); err != nil {
		return err
	}
	fmt.Println("launch: probe kernel completed")
	return nil
}
