// Command spindle is a Spotify player for the terminal.
package main

import "github.com/tessro/spindle/internal/cli"

func main() {
	cli.Execute()
}
