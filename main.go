package main

import "github.com/moyu-x/xmp-audit/cmd"

func main() {
	cmd.Execute()
}
