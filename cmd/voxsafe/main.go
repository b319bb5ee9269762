package main

import "github.com/voxsafe/voxsafe/cmd/voxsafe/cmd"

func main() {
	cmd.Execute()
}
