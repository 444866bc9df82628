package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/gpurt/tracer/opencl"
	"github.com/urfave/cli"
)

// List available opencl devices.
func ListDevices(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	clPlatforms, err := opencl.GetPlatformInfo()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("\nSystem provides %d opencl platform(s):\n\n", len(clPlatforms)))
	for pIdx, platformInfo := range clPlatforms {
		buf.WriteString(fmt.Sprintf("[Platform %02d]\n%s\n", pIdx, platformInfo.String()))
	}

	logger.Notice(buf.String())
	return nil
}
