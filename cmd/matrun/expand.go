// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"matrun-cli/internal/app"
	"matrun-cli/internal/matrix"
	"matrun-cli/pkg/matrixfile"

	"github.com/spf13/cobra"
)

var (
	expandFile string
	expandJSON bool

	// expandCmd previews the cross-product without running anything
	expandCmd = &cobra.Command{
		Use:   "expand",
		Short: "Print the cells the matrix expands to, without running them",
		Long: `Expand the matrix file into its full cross-product and print one line
per cell, in the exact order a run would schedule them. With --json the
cell list is printed as a JSON array instead.`,
		Args: cobra.NoArgs,
		RunE: runExpand,
	}
)

func init() {
	expandCmd.Flags().StringVarP(&expandFile, "file", "f", "", "matrix file to expand (default: search the current directory)")
	expandCmd.Flags().BoolVar(&expandJSON, "json", false, "print the cell list as JSON")
}

// expandedCell is the JSON shape of one cell in `matrun expand --json`.
type expandedCell struct {
	Index int                `json:"index"`
	ID    string             `json:"id"`
	Pairs []matrix.AxisValue `json:"pairs"`
}

func runExpand(cmd *cobra.Command, args []string) error {
	mf, err := loadMatrixFile(expandFile)
	if err != nil {
		return runFailure(err)
	}
	specs, err := app.Descriptor(mf).Expand()
	if err != nil {
		return runFailure(err)
	}

	if expandJSON {
		cells := make([]expandedCell, len(specs))
		for i, spec := range specs {
			cells[i] = expandedCell{Index: spec.Index, ID: spec.ID(), Pairs: spec.Pairs}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cells)
	}

	name := mf.Name
	if name == "" {
		name = mf.FilePath
	}
	fmt.Println(TitleStyle.Render(name) + SubtitleStyle.Render(fmt.Sprintf(" - %d cells", len(specs))))
	for _, spec := range specs {
		fmt.Printf("  %3d  %s\n", spec.Index, spec.ID())
	}
	return nil
}

// loadMatrixFile loads the named matrix file, or searches the current
// directory for one when no name is given.
func loadMatrixFile(file string) (*matrixfile.Matrixfile, error) {
	if file == "" {
		found, err := matrixfile.FindFile(".")
		if err != nil {
			return nil, err
		}
		file = found
	}
	return matrixfile.Load(file)
}
