package main

import (
	"fmt"
	"log"
	"os"
)

func main() {
	defer fmt.Println("cleanup")

	if len(os.Args) > 2 {
		log.Fatalf("too many arguments: %d", len(os.Args)) // want `avoid calling log.Fatalf in main.main`
	}
	if len(os.Args) > 1 {
		os.Exit(2) // want `avoid calling os.Exit in main.main`
	}

	func() {
		log.Fatal("nested") // want `avoid calling log.Fatal in main.main`
	}()

	exit(0)
}

func exit(code int) {
	os.Exit(code)
}
