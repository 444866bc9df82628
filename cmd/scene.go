package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/gpurt/scene"
	"github.com/achilleasa/gpurt/scene/bvh"
	"github.com/achilleasa/gpurt/tracer/pack"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Display scene objects and the BVHs built for them.
func ShowSceneInfo(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	sc, _, err := loadScene(ctx.String("scene"), ctx.Int("leaf-size"))
	if err != nil {
		return err
	}

	strategy := bvh.CentroidMidpoint
	if ctx.String("split") == "sah" {
		strategy = bvh.SurfaceAreaHeuristic
	}

	objects := sc.Objects()
	trees, err := pack.BuildBVHs(objects, strategy, ctx.Int("bvh-workers"))
	if err != nil {
		return err
	}

	logger.Noticef("scene information:\n%s", sceneTable(objects, trees))
	return nil
}

func sceneTable(objects []*scene.Object, trees []*bvh.Tree) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Object", "Kind", "Geometry", "Faces", "Vertices", "BVH nodes", "BVH leaves", "BVH depth", "Build time"})

	var totalFaces, totalVertices, totalNodes int
	for index, obj := range objects {
		kind := "mesh"
		if obj.IsLight() {
			kind = "light"
		}
		row := []string{
			obj.Name,
			kind,
			obj.Geometry.Type().String(),
			fmt.Sprintf("%d", obj.Geometry.FaceCount()),
			fmt.Sprintf("%d", obj.Geometry.VertexCount()),
			"-", "-", "-", "-",
		}
		if tree := trees[index]; tree != nil {
			stats := tree.Stats()
			row[5] = fmt.Sprintf("%d", stats.Nodes)
			row[6] = fmt.Sprintf("%d", stats.Leaves)
			row[7] = fmt.Sprintf("%d", stats.MaxDepth)
			row[8] = stats.BuildTime.String()
			totalNodes += stats.Nodes
		}
		totalFaces += obj.Geometry.FaceCount()
		totalVertices += obj.Geometry.VertexCount()
		table.Append(row)
	}
	table.SetFooter([]string{"TOTAL", "", "", fmt.Sprintf("%d", totalFaces), fmt.Sprintf("%d", totalVertices), fmt.Sprintf("%d", totalNodes), "", "", ""})

	table.Render()
	return buf.String()
}
