package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetPrefix("clamservices: ")

	if err := rootCmd().Dispatch(os.Args[1:]); err != nil {
		log.Printf("%v", err)
		os.Exit(exitCode(err))
	}
}
