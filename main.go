// services/farm/main.go
package main

import (
	"log"
	"os"

	"example.com/hydrofarm/services/farm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
