package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"spai/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: spai-ctl [-s socket] status|hibernate|restart")
		cli.PrintDefaults()
	}
	cli.Parse()

	cmd := ipc.CmdStatus
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	reply, err := ipc.SendCommand(*socket, cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "spai:", err)
		os.Exit(1)
	}
	if len(reply.Data) > 0 {
		fmt.Println(string(reply.Data))
	} else {
		fmt.Println("ok")
	}
}
