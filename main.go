// The main package for the confluence-collector executable.
package main

import (
	"github.com/JakeFAU/confluence-collector/cmd"
)

func main() {
	cmd.Execute()
}
