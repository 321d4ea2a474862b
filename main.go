package main

import "github.com/oar-cd/pushdeploy/cmd/root"

func main() {
	root.Execute()
}
