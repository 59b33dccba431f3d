// Command shelf manages a catalog of MIDI songs.
package main

import "github.com/mesh-intelligence/midishelf/internal/cli"

func main() {
	cli.Execute()
}
