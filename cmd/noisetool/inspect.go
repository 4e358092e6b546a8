package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Lan-st/caffe-1/layer"
	"github.com/Lan-st/caffe-1/net"
	"github.com/urfave/cli/v3"
)

func inspectCmd() *cli.Command {
	var (
		netPath    string
		phase      string
		configFile string
	)
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "net",
			Aliases:     []string{"n"},
			Usage:       "net definition (.yaml, .yml or .json)",
			Required:    true,
			Destination: &netPath,
		},
		&cli.StringFlag{
			Name:        "phase",
			Usage:       "phase to build the net in",
			Value:       "TRAIN",
			Destination: &phase,
		},
		&cli.StringFlag{
			Name:        "config",
			Usage:       "config file",
			Value:       configPath(),
			Destination: &configFile,
		},
	}

	return &cli.Command{
		Name:  "inspect",
		Usage: "Print the layers of a net and their top shapes",
		Flags: append(flags, loggingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx = withLogger(ctx, cmd, LoadConfig(configFile))
			var ph layer.Phase
			if err := ph.UnmarshalText([]byte(phase)); err != nil {
				return err
			}
			p, err := net.Load(netPath)
			if err != nil {
				return err
			}
			n, err := net.New(ctx, p, ph)
			if err != nil {
				return err
			}
			return printNet(os.Stdout, n)
		},
	}
}

func printNet(w io.Writer, n *net.Net) error {
	if _, err := fmt.Fprintf(w, "net %q (%s)\n", n.Name(), n.Phase()); err != nil {
		return err
	}
	for _, name := range n.Inputs() {
		b, err := n.Blob(name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  input  %-12s %v\n", name, b.Shape()); err != nil {
			return err
		}
	}
	for i, l := range n.Layers() {
		shapes := make([]string, 0, len(n.TopBlobs(i)))
		for _, b := range n.TopBlobs(i) {
			shapes = append(shapes, b.Shape().String())
		}
		if _, err := fmt.Fprintf(w, "  layer  %-12s %-12s -> %s\n", l.Name(), l.Type(), strings.Join(shapes, " ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "  outputs %s\n", strings.Join(n.Outputs(), ", "))
	return err
}

func layersCmd() *cli.Command {
	return &cli.Command{
		Name:  "layers",
		Usage: "List the registered layer types",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, t := range layer.Types() {
				fmt.Println(t)
			}
			return nil
		},
	}
}
