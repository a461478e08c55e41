package main

import "github.com/admaesmo/AidDiag/cmd"

func main() {
	cmd.Execute()
}
