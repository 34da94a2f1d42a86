// Command sender is the sending half of the benchmark as a standalone binary:
//
//	sender <mechanism> <input-file>
package main

import (
	"github.com/billm/ipcbench/cmd"
)

func main() {
	cmd.ExecuteCommand(cmd.NewSenderCommand())
}
