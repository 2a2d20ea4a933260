package cli

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/utils"
	"go.viam.com/senses/vision/objectdetection"
)

// TypesAction prints a table of the registered source and detector types and their attributes.
func TypesAction(c *cli.Context) error {
	printf(c.App.Writer, "%s", TypesTable())
	return nil
}

// TypesTable renders one row per registered source and detector type.
func TypesTable() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Kind", "Type", "Attributes"})
	for _, name := range camera.RegisteredSourceTypes() {
		reg, _ := camera.LookupSource(name)
		t.AppendRow(table.Row{"source", name, strings.Join(utils.AttributeNames(reg.AttributesType), ", ")})
	}
	for _, name := range objectdetection.RegisteredDetectorTypes() {
		reg, _ := objectdetection.LookupDetector(name)
		t.AppendRow(table.Row{"detector", name, strings.Join(utils.AttributeNames(reg.AttributesType), ", ")})
	}
	return t.Render()
}
