// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"matrun-cli/pkg/matrixfile"
	"matrun-cli/pkg/platform"

	"github.com/spf13/cobra"
)

var (
	initForce bool

	// initCmd creates a new matrix file
	initCmd = &cobra.Command{
		Use:   "init [file]",
		Short: "Create a new matrix file in the current directory",
		Long: `Create a new matrix file in the current directory with a starter axis
and command list. The generated file parses back through 'matrun
validate' unchanged, so it is a working matrix from the first save.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing matrix file")
}

func runInit(cmd *cobra.Command, args []string) error {
	filename := "matrix.cue"
	if len(args) > 0 {
		filename = args[0]
	}

	// A reserved base name would break checkouts of this repository on
	// Windows even when the file is created elsewhere.
	if platform.IsWindowsReservedName(filepath.Base(filename)) {
		return fmt.Errorf("'%s' is a reserved file name on Windows; pick another name", filepath.Base(filename))
	}

	// Check if file exists
	if _, err := os.Stat(filename); err == nil && !initForce {
		return fmt.Errorf("file '%s' already exists. Use --force to overwrite", filename)
	}

	content := matrixfile.GenerateCUE(matrixfile.Scaffold())

	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	absPath, _ := filepath.Abs(filename)
	fmt.Printf("%s Created %s\n", SuccessStyle.Render("✓"), absPath)
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Edit the axes and commands to match your project")
	fmt.Println("  2. Preview the cells with 'matrun expand'")
	fmt.Println("  3. Run the matrix with 'matrun run'")

	return nil
}
