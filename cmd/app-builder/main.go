package main

import "github.com/oshokin/app-installer/cmd/app-builder/cmd"

func main() {
	cmd.Execute()
}
