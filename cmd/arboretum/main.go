package main

import (
	"fmt"
	"os"

	"github.com/ComplianceAsCode/auditree-arboretum/internal/adapters/inbound/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "arboretum:", err)
		os.Exit(1)
	}
}
