package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	cli "github.com/spf13/pflag"

	"roastbot/internal/ipc"
	"roastbot/pkg/transport"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: roastbot-ctl [--socket path] roast|toggle|ports\n")
	cli.PrintDefaults()
}

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket of roastbot-robot")
	timeout := cli.DurationP("timeout", "t", 60*time.Second, "How long to wait for the robot")
	cli.Usage = usage
	cli.Parse()

	if cli.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	switch cmd := strings.ToLower(cli.Arg(0)); cmd {
	case "roast", "toggle":
		if err := ipc.SendCommand(*socket, strings.ToUpper(cmd), *timeout); err != nil {
			fmt.Println("roastbot-robot not running:", err)
			os.Exit(1)
		}
	case "ports":
		listPorts()
	default:
		usage()
		os.Exit(2)
	}
}

func listPorts() {
	ports, err := transport.ListPorts()
	if err != nil {
		fmt.Println("cannot list ports:", err)
		os.Exit(1)
	}
	pick, _ := transport.PickPort(ports)
	for _, p := range ports {
		mark := " "
		if p.Name == pick.Name {
			mark = "*"
		}
		fmt.Printf("%s %-20s %s %s:%s\n", mark, p.Name, p.Product, p.VID, p.PID)
	}
}
