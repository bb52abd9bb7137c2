// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// This package contains utilities for handling platform-specific concerns:
// Windows reserved filenames that cannot be used as matrix file names, and
// application sandbox detection (Flatpak, Snap) for processes that need to
// reach host binaries such as a container engine CLI.
package platform
