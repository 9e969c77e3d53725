package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/griot/internal/dagger"
)

// Build and return directory of go binaries
func (g *Griot) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// cgo rules out cross compiling from one container, so each platform
	// builds in its own emulated container
	platforms := []dagger.Platform{"linux/amd64", "linux/arm64"}

	outputs := dag.Directory()

	for _, platform := range platforms {
		path := string(platform) + "/"

		build := g.goContainer(platform).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/griot"}).
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/griotapi"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (g *Griot) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/davidhonghikim/griot-sub000/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/davidhonghikim/griot-sub000/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/davidhonghikim/griot-sub000/pkg/utils.Buildtime=%s'", buildtime),
	}

	return g.Build(ctx, strings.Join(ldflags, " "))
}
