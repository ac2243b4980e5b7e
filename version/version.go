// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package version exposes the build version of the systems service.  The
// variables are overridden at build time through -ldflags.
package version

import "fmt"

var (
	// GitCommit is the git commit the binary was built from.
	GitCommit string

	// Version is the base semantic version.
	Version = "1.0.0"

	// VersionPrerelease marks non-release builds, e.g. "dev".
	VersionPrerelease = "dev"
)

// Info describes one build of the service.
type Info struct {
	Revision          string
	Version           string
	VersionPrerelease string
}

// Get returns the build information compiled into the binary.
func Get() *Info {
	return &Info{
		Revision:          GitCommit,
		Version:           Version,
		VersionPrerelease: VersionPrerelease,
	}
}

// VersionNumber renders the version as reported in startup events.
func (i *Info) VersionNumber() string {
	v := i.Version
	if i.VersionPrerelease != "" {
		v = fmt.Sprintf("%s-%s", v, i.VersionPrerelease)
	}
	if i.Revision != "" {
		v = fmt.Sprintf("%s (%s)", v, i.Revision)
	}
	return v
}
