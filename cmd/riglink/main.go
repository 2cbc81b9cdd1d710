// Command riglink runs the ground station process: the unit registry
// and management website, the command/auth TCP service, and the UDP
// links to the excavator rig and the motion platform.
package main

import "github.com/Emil-Frisk/Final-Project/cli"

func main() {
	cli.Run()
}
