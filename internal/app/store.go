// SPDX-License-Identifier: MPL-2.0

package app

import (
	"context"

	"matrun-cli/internal/config"
	"matrun-cli/internal/store"
)

// UploadArtifacts pushes every file under dir to the configured artifact
// store, keyed under the run ID. It returns the number of objects
// uploaded. This is the one place the app config's store block is mapped
// onto the store package's own config.
func UploadArtifacts(ctx context.Context, sc config.StoreConfig, runID, dir string) (int, error) {
	cfg := store.Config{
		Endpoint:     sc.Endpoint,
		Bucket:       sc.Bucket,
		Region:       sc.Region,
		AccessKeyEnv: sc.AccessKeyEnv,
		SecretKeyEnv: sc.SecretKeyEnv,
		UseSSL:       sc.UseSSL,
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	client, err := store.NewClient(cfg)
	if err != nil {
		return 0, err
	}
	if err := store.EnsureBucket(ctx, client, cfg); err != nil {
		return 0, err
	}
	return store.UploadTree(ctx, client, cfg, runID, dir)
}
