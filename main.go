package main

import "github.com/blobprobe/blobprobe/cmd"

func main() {
	cmd.Execute()
}
