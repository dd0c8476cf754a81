package main

import (
	"github.com/revmarket/marketplace-engine/internal/daemon"
)

func main() {
	daemon.Execute()
}
