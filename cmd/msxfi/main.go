package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"msxfi/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	cobra.CheckErr(NewCLI(cfg).ExecuteContext(context.Background()))
}
