// Command xpack compresses executables into self-extracting executables and
// restores them.
//
//	xpack [options] file...
//	xpack -d [options] file...
//	xpack -t file...
//	xpack -l file...
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/arloliu/xpack/packer"

	_ "github.com/arloliu/xpack/packer/dossys"
)

const (
	exitOK      = 0
	exitError   = 1
	exitWarning = 2
)

// pending holds the temporary outputs that an interrupt must remove.
var pending sync.Map

func main() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		pending.Range(func(key, _ any) bool {
			key.(*packer.TempOutput).Abort()
			return true
		})
		fmt.Fprintln(os.Stderr, "xpack: interrupted")
		os.Exit(exitError)
	}()

	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	code := exitOK
	app := newApp(stdout, stderr, &code)
	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "xpack: %v\n", err)
		if code == exitOK {
			code = exitError
		}
	}

	return code
}
