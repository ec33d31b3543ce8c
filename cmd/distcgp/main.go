// Command distcgp drives a distributed run of the island-model genetic
// algorithm described in this repository: one process per rank, peers
// discovered from a static list, migration and rank-map sync carried over
// gRPC.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("distcgp: %v", err)
	}
}
