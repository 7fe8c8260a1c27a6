package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"sentinelfs/config"
)

func main() {
	sock := flag.String("sock", config.Default().ControlSocketPath, "path to the daemon's control socket")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		runDashboard(*sock)
		return
	}

	cmd := strings.ToUpper(args[0])
	if cmd == "LOGS" && len(args) > 1 {
		cmd = "LOGS|" + args[1]
	}

	lines, err := sendCommand(*sock, cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sentinelfsctl: %v\n", err)
		os.Exit(1)
	}
	for _, l := range lines {
		fmt.Println(l)
	}
	if isErrResponse(lines) {
		os.Exit(1)
	}
}
