package main

import "github.com/OpenTraceLab/RetroBusDiag/cmd/retrodiag/cmd"

func main() {
	cmd.Execute()
}
