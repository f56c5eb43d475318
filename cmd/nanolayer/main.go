// Command nanolayer is the CLI entrypoint: a container-image build helper
// invoked from Dockerfile RUN instructions.
package main

import (
	"os"

	"github.com/devcontainers-contrib/nanolayer/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
