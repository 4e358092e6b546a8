package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Lan-st/caffe-1/dataset"
	"github.com/Lan-st/caffe-1/layer"
	"github.com/Lan-st/caffe-1/logger"
	"github.com/Lan-st/caffe-1/net"
	"github.com/urfave/cli/v3"
)

type augmentOptions struct {
	NetPath    string
	Images     []string
	Output     string
	Seed       int64
	Workers    int64
	Phase      layer.Phase
	InputBlob  string
	OutputBlob string
}

func augmentCmd() *cli.Command {
	var (
		opts       augmentOptions
		phase      string
		configFile string
	)
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "net",
			Aliases:     []string{"n"},
			Usage:       "net definition (.yaml, .yml or .json)",
			Required:    true,
			Destination: &opts.NetPath,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "output PNG; several images are written as name-N.png",
			Value:       "augmented.png",
			Destination: &opts.Output,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "seed for layers that do not set one (0 uses the global seed)",
			Destination: &opts.Seed,
		},
		&cli.Int64Flag{
			Name:        "workers",
			Usage:       "workers for layers that do not set them (0 uses GOMAXPROCS)",
			Destination: &opts.Workers,
		},
		&cli.StringFlag{
			Name:        "phase",
			Usage:       "TRAIN applies the augmentation, TEST passes images through",
			Value:       "TRAIN",
			Destination: &phase,
		},
		&cli.StringFlag{
			Name:        "input-blob",
			Usage:       "blob the images are written to (default: first net input)",
			Destination: &opts.InputBlob,
		},
		&cli.StringFlag{
			Name:        "output-blob",
			Usage:       "blob the images are read from (default: first net output)",
			Destination: &opts.OutputBlob,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "config file",
			Value:       configPath(),
			Destination: &configFile,
		},
	}

	return &cli.Command{
		Name:      "augment",
		Usage:     "Run images through a net and write the result",
		ArgsUsage: "<image> [image...]",
		Flags:     append(flags, loggingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig(configFile)
			ctx = withLogger(ctx, cmd, cfg)
			applyAugmentConfig(cmd, cfg, &opts.Seed, &opts.Workers)

			if err := opts.Phase.UnmarshalText([]byte(phase)); err != nil {
				return err
			}
			opts.Images = cmd.Args().Slice()
			if len(opts.Images) == 0 {
				return fmt.Errorf("augment: no input images")
			}
			_, err := runAugment(ctx, opts)
			return err
		},
	}
}

func outputPaths(output string, n int) []string {
	if n == 1 {
		return []string{output}
	}
	ext := filepath.Ext(output)
	base := strings.TrimSuffix(output, ext)
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
	return paths
}

func runAugment(ctx context.Context, o augmentOptions) ([]string, error) {
	log := logger.FromContext(ctx)

	p, err := net.Load(o.NetPath)
	if err != nil {
		return nil, err
	}
	batch, err := dataset.LoadImages(o.Images)
	if err != nil {
		return nil, err
	}

	inName := o.InputBlob
	if inName == "" {
		if len(p.Inputs) == 0 {
			return nil, fmt.Errorf("augment: net %q declares no inputs", p.Name)
		}
		inName = p.Inputs[0].Name
	}
	found := false
	for i := range p.Inputs {
		if p.Inputs[i].Name == inName {
			p.Inputs[i].Shape = []int{batch.Batches, batch.Channels, batch.Rows, batch.Cols}
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("augment: %w: input %q", net.ErrUnknownBlob, inName)
	}

	for i := range p.Layers {
		lp := &p.Layers[i]
		if o.Seed != 0 && lp.Seed == 0 {
			lp.Seed = uint64(o.Seed) + uint64(i)
		}
		if o.Workers > 0 && lp.Workers == 0 {
			lp.Workers = int(o.Workers)
		}
	}

	n, err := net.New(ctx, p, o.Phase)
	if err != nil {
		return nil, err
	}
	in, err := n.Blob(inName)
	if err != nil {
		return nil, err
	}
	if err := in.Data.Copy(batch); err != nil {
		return nil, err
	}
	if err := n.Forward(ctx); err != nil {
		return nil, err
	}

	outName := o.OutputBlob
	if outName == "" {
		outName = inName
		if outs := n.Outputs(); len(outs) > 0 {
			outName = outs[0]
		}
	}
	out, err := n.Blob(outName)
	if err != nil {
		return nil, err
	}
	imgs, err := dataset.Unbatch(out.Data)
	if err != nil {
		return nil, err
	}

	paths := outputPaths(o.Output, len(imgs))
	for i, img := range imgs {
		if err := dataset.SavePNG(paths[i], img); err != nil {
			return nil, err
		}
		log.Info("wrote image", "path", paths[i], "blob", outName, "phase", o.Phase.String())
	}
	return paths, nil
}
