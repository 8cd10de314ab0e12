package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/dmitrijs2005/careconnect/internal/server"
)

func main() {
	if err := server.Main(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "careconnect: %v\n", err)
		os.Exit(1)
	}
}
