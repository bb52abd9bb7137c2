// SPDX-License-Identifier: MPL-2.0

package report

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"matrun-cli/internal/provision"
)

// ArchiveFileName is the compressed bundle of every cell's captured logs.
const ArchiveFileName = "logs.tar.zst"

// WriteArtifacts writes the full artifact tree for a run under dir:
//
//	report.json            canonical run report
//	report.json.sha256     digest sidecar
//	cells/<cell>/cmd-NN.out, cmd-NN.err, and provision.log
//	logs.tar.zst           the cells tree, compressed
//
// The tree is self-contained: a run can be inspected or reran from it alone.
func WriteArtifacts(dir string, r *RunReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	if err := WriteJSON(filepath.Join(dir, ReportFileName), r); err != nil {
		return err
	}
	if err := writeCellLogs(filepath.Join(dir, "cells"), r); err != nil {
		return err
	}
	return archiveTree(filepath.Join(dir, "cells"), filepath.Join(dir, ArchiveFileName))
}

// writeCellLogs lays each cell's captured command output into its own
// directory, one .out and .err file per command in sequence order.
func writeCellLogs(root string, r *RunReport) error {
	for i := range r.Outcomes {
		o := &r.Outcomes[i]
		cellDir := filepath.Join(root, provision.CellDirName(o.Spec))
		if err := os.MkdirAll(cellDir, 0o755); err != nil {
			return fmt.Errorf("failed to create cell log dir: %w", err)
		}
		for n, cmd := range o.Commands {
			base := filepath.Join(cellDir, fmt.Sprintf("cmd-%02d", n))
			if err := os.WriteFile(base+".out", []byte(cmd.Stdout), 0o644); err != nil {
				return fmt.Errorf("failed to write command log: %w", err)
			}
			if err := os.WriteFile(base+".err", []byte(cmd.Stderr), 0o644); err != nil {
				return fmt.Errorf("failed to write command log: %w", err)
			}
		}
		if o.Provision != nil {
			content := fmt.Sprintf("stage: %s\n%s\n%s", o.Provision.Stage, o.Provision.Message, o.Provision.Output)
			if err := os.WriteFile(filepath.Join(cellDir, "provision.log"), []byte(content), 0o644); err != nil {
				return fmt.Errorf("failed to write provision log: %w", err)
			}
		}
	}
	return nil
}

// archiveTree tars srcDir into a zstd-compressed archive at dst. Paths
// inside the archive are relative to srcDir's parent so the bundle unpacks
// into a "cells/" tree.
func archiveTree(srcDir, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to initialize compressor: %w", err)
	}
	tw := tar.NewWriter(zw)

	base := filepath.Base(srcDir)
	walkErr := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = base + "/" + filepath.ToSlash(rel)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if d.IsDir() {
			hdr.Name += "/"
			return tw.WriteHeader(hdr)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		return err
	})
	if walkErr != nil {
		return fmt.Errorf("failed to archive cell logs: %w", walkErr)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	return out.Close()
}

// ReadArchive decompresses and lists an artifact archive's entries, mapping
// entry name to content. Used by the report inspection command.
func ReadArchive(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize decompressor: %w", err)
	}
	defer zr.Close()

	entries := make(map[string]string)
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		var sb strings.Builder
		if _, err := io.Copy(&sb, tr); err != nil { //nolint:gosec // bounded by local archive size
			return nil, fmt.Errorf("failed to read archive entry %s: %w", hdr.Name, err)
		}
		entries[hdr.Name] = sb.String()
	}
	return entries, nil
}
