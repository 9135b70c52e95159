package main

import (
	"github.com/AzielCF/az-sheetboard/cmd"
)

func main() {
	cmd.Execute()
}
