package main

import "github.com/maastricht-university/upsot-pipeline/cmd"

func main() {
	cmd.Execute()
}
