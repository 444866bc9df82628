package renderer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
)

type FrameStats struct {
	SessionID string

	// The stages that ran for this frame.
	Plan Plan

	// Frame counter value passed to the kernel.
	FrameIndex int

	Rays     int
	Faces    int
	Vertices int
	Objects  int
	Lights   int
	BVHNodes int

	PrepareTime    time.Duration
	KernelTime     time.Duration
	AccumulateTime time.Duration
	RenderTime     time.Duration
}

// Render stats as a table.
func (s FrameStats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Frame", "Stages", "Rays", "Faces", "BVH nodes", "Prepare", "Kernel", "Accumulate"})
	table.Append([]string{
		fmt.Sprintf("%d", s.FrameIndex),
		s.Plan.String(),
		fmt.Sprintf("%d", s.Rays),
		fmt.Sprintf("%d", s.Faces),
		fmt.Sprintf("%d", s.BVHNodes),
		s.PrepareTime.String(),
		s.KernelTime.String(),
		s.AccumulateTime.String(),
	})
	table.SetFooter([]string{"", "", "", "", "", "", "TOTAL", s.RenderTime.String()})

	table.Render()
	return buf.String()
}
