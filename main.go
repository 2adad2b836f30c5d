package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"fsls/internal/analyzer"
	"fsls/internal/projects"
	"fsls/internal/server"
)

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

func main() {
	versionFlag := flag.Bool("version", false, "Print the version of the program")
	logfileFlag := flag.String("logfile", "", "Path to log file")
	verbosityFlag := flag.Int("verbosity", 1, "Log verbosity (0-2)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("fsls language server version %s\n", Version)
		return
	}

	// Stdout carries the protocol, so logs go to a file or stderr.
	if *logfileFlag != "" {
		path := *logfileFlag
		commonlog.Configure(*verbosityFlag, &path)
	} else {
		commonlog.Configure(*verbosityFlag, nil)
	}

	// The compiler host and the project cracker are bound by the embedding
	// distribution; the bare binary runs with null collaborators that
	// report themselves through diagnostics.
	srv, err := server.NewServer(&analyzer.NullGateway{}, projects.NullLoader{})
	if err != nil {
		commonlog.GetLogger("fsls").Criticalf("failed to create server: %v", err)
		os.Exit(1)
	}

	if err := srv.RunStdio(); err != nil {
		commonlog.GetLogger("fsls").Criticalf("server error: %v", err)
		os.Exit(1)
	}
}
