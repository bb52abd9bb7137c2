// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"os"
)

// Config locates the object store and the bucket run artifacts land in.
// Credentials come indirectly through environment variable names so a
// matrix file checked into a repository never carries secrets.
type Config struct {
	// Endpoint is the store's host:port, e.g. "minio.internal:9000".
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	// Bucket receives artifact objects under <runID>/ prefixes.
	Bucket string `json:"bucket" mapstructure:"bucket"`
	// Region is optional and passed through to bucket creation.
	Region string `json:"region,omitempty" mapstructure:"region"`
	// AccessKeyEnv and SecretKeyEnv name the environment variables holding
	// the credentials.
	AccessKeyEnv string `json:"accessKeyEnv" mapstructure:"accessKeyEnv"`
	SecretKeyEnv string `json:"secretKeyEnv" mapstructure:"secretKeyEnv"`
	// UseSSL enables TLS to the endpoint.
	UseSSL bool `json:"useSSL,omitempty" mapstructure:"useSSL"`
}

// Enabled reports whether artifact upload is configured at all.
func (c Config) Enabled() bool {
	return c.Endpoint != "" || c.Bucket != ""
}

// Validate checks the configuration and that the referenced credential
// variables are actually set.
func (c Config) Validate() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("artifact store endpoint is required"))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("artifact store bucket is required"))
	}
	if c.AccessKeyEnv == "" || c.SecretKeyEnv == "" {
		errs = append(errs, errors.New("artifact store credential variable names are required"))
	} else {
		if os.Getenv(c.AccessKeyEnv) == "" {
			errs = append(errs, fmt.Errorf("credential variable %s is not set", c.AccessKeyEnv))
		}
		if os.Getenv(c.SecretKeyEnv) == "" {
			errs = append(errs, fmt.Errorf("credential variable %s is not set", c.SecretKeyEnv))
		}
	}
	return errors.Join(errs...)
}
