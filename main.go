package main

import (
	"os"

	"github.com/achilleasa/gpurt/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	sceneFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "scene, s",
			Value: "cornell",
			Usage: "built-in scene name (quad, cornell) or wavefront .obj file",
		},
		cli.IntFlag{
			Name:  "leaf-size",
			Value: 4,
			Usage: "max triangles per BVH leaf; 0 disables BVH construction",
		},
		cli.StringFlag{
			Name:  "split",
			Value: "midpoint",
			Usage: "BVH split strategy (midpoint, sah)",
		},
		cli.IntFlag{
			Name:  "bvh-workers",
			Value: 0,
			Usage: "number of parallel BVH builds; 0 uses all cpus",
		},
	}

	app := cli.NewApp()
	app.Name = "gpurt"
	app.Usage = "render scenes using progressive path tracing"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, notice, warning, error)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "list-devices",
			Usage:  "list available opencl devices",
			Action: cmd.ListDevices,
		},
		{
			Name:  "scene-info",
			Usage: "display scene objects and BVH statistics",
			Description: `
Load a built-in scene or parse a wavefront obj file, build a BVH for each
mesh and display per-object face, vertex and BVH statistics.`,
			Flags:  sceneFlags,
			Action: cmd.ShowSceneInfo,
		},
		{
			Name:  "render",
			Usage: "render scene",
			Description: `
Render a number of progressive frames and save the averaged result as a PNG
image. Each frame traces spp rays per pixel.`,
			Flags: append(sceneFlags, []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 512,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 512,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "spp",
					Value: 4,
					Usage: "samples per pixel and frame",
				},
				cli.IntFlag{
					Name:  "frames",
					Value: 16,
					Usage: "number of frames to accumulate",
				},
				cli.IntFlag{
					Name:  "bounces",
					Value: 4,
					Usage: "max indirect bounces",
				},
				cli.IntFlag{
					Name:  "threads",
					Value: 64,
					Usage: "kernel threads per block",
				},
				cli.IntFlag{
					Name:  "blocks",
					Value: 256,
					Usage: "kernel blocks",
				},
				cli.Float64Flag{
					Name:  "fov",
					Value: 90,
					Usage: "horizontal field of view in degrees for cameras without one",
				},
				cli.BoolFlag{
					Name:  "no-jitter",
					Usage: "trace every sample through the pixel center",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 0,
					Usage: "seed for sample jitter",
				},
				cli.StringFlag{
					Name:  "device, d",
					Value: "host",
					Usage: "render device (host, opencl)",
				},
				cli.StringFlag{
					Name:  "cl-type",
					Value: "all",
					Usage: "opencl device type (cpu, gpu, all)",
				},
				cli.StringFlag{
					Name:  "cl-device",
					Usage: "select the first opencl device whose name contains this value",
				},
				cli.StringFlag{
					Name:  "cl-program",
					Usage: "load the opencl program from this file instead of the built-in one",
				},
				cli.Float64Flag{
					Name:  "gamma",
					Value: 2.2,
					Usage: "gamma used when converting the frame to 8-bit",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame",
				},
			}...),
			Action: cmd.RenderFrame,
		},
	}

	app.Run(os.Args)
}
