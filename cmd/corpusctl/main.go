package main

import (
	"flag"
	"fmt"
	"os"

	"inlook-corpus/internal/app"
	_ "inlook-corpus/pkg/stages"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.Parse()

	if configFile == "" {
		if envConfigFile := os.Getenv("CORPUSCTL_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		} else if _, err := os.Stat("/etc/corpusctl/config.json"); err == nil {
			configFile = "/etc/corpusctl/config.json"
		}
	}

	if configFile != "" {
		fmt.Printf("Using configuration file: %s\n", configFile)
	} else {
		fmt.Println("No configuration file found, using defaults")
	}

	application, err := app.New(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
