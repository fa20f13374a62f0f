package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kjstillabower/weather-widget/internal/cli"
	"github.com/kjstillabower/weather-widget/internal/config"
)

func main() {
	if err := cli.New(config.Load).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
