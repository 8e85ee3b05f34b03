package main

import (
	"github.com/memscout/memscout/cmd/mscout/cmds"
)

func main() {
	cmds.New(false).Execute()
}
