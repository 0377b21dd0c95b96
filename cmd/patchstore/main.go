package main

import (
	"log"
)

func main() {
	// Cobra handles parsing the arguments
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
