package main

import (
	"fmt"
	"strconv"
)

// Overridden at link time with -ldflags "-X main.gitSHA1=...".
var (
	version   string = "1.0.0"
	gitSHA1   string = "unknown"
	gitDirty  string = "unknown"
	buildID   string = "unknown"
	buildDate string = "unknown"
)

// versionString adds the git commit and working tree status when they were
// provided at build time.
func versionString() string {
	v := version
	if sha1Int, err := strconv.ParseUint(gitSHA1, 16, 64); err == nil && sha1Int != 0 {
		v = fmt.Sprintf("%s (git:%s", v, gitSHA1)
		if dirtyInt, err := strconv.ParseInt(gitDirty, 10, 64); err == nil && dirtyInt != 0 {
			v += "-dirty"
		}
		v += ")"
	}
	if buildDate != "unknown" {
		v = fmt.Sprintf("%s build:%s", v, buildDate)
	}
	return v
}

func buildIDRaw() string {
	return buildID + buildDate + gitSHA1 + gitDirty
}
