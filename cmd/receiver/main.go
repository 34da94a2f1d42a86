// Command receiver is the receiving half of the benchmark as a standalone binary:
//
//	receiver <mechanism>
package main

import (
	"github.com/billm/ipcbench/cmd"
)

func main() {
	cmd.ExecuteCommand(cmd.NewReceiverCommand())
}
