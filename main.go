package main

import "github.com/hwdbg/dmpflash/cmd"

func main() {
	cmd.Execute()
}
