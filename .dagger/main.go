// Griot CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/griot/internal/dagger"
)

// Griot is the main module for the griot CI/CD pipeline
type Griot struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Griot CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", ".griot", "build", "tmp", "_examples"]
	source *dagger.Directory,
) *Griot {
	return &Griot{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container for platform
// with gcc, libsqlite3-dev, CGO enabled, and the project source mounted.
// CGO is required by the sqlite-vec vector store.
func (g *Griot) goContainer(platform dagger.Platform) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+string(platform))).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+string(platform))).
		WithWorkdir("/src").
		WithDirectory("/src", g.Source)
}

// Test runs the griot unit tests via "go test"
func (g *Griot) Test(ctx context.Context) (string, error) {
	return g.goContainer("").
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" over every package
func (g *Griot) Vet(ctx context.Context) (string, error) {
	return g.goContainer("").
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
