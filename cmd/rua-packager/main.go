// Command rua-packager assembles the RuaFlashTool release and compresses it
// into a self-extracting archive.
package main

import "github.com/oshokin/rua-packager/cmd/rua-packager/cmd"

func main() {
	cmd.Execute()
}
