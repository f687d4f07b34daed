// Command uamdump prints the content of shader containers.
//
// Usage:
//
//	uamdump <file.dksh>
//	uamdump <control> [<gpu program>]
//
// The container kind is detected from its magic. An NVN control container
// is printed alone, or together with its GPU program when one is given.
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/gogpu/uam/dksh"
	"github.com/gogpu/uam/internal/dump"
	"github.com/gogpu/uam/nvn"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(stderr, "Usage: uamdump <file.dksh> | <control> [<gpu program>]")
		return 2
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if len(data) < 4 {
		fmt.Fprintln(stderr, "Error: file too small")
		return 1
	}

	switch magic := binary.LittleEndian.Uint32(data); magic {
	case dksh.Magic:
		if len(args) != 1 {
			fmt.Fprintln(stderr, "Error: a shader module is a single file")
			return 2
		}
		err = dump.Module(stdout, data)
	case nvn.ControlMagic:
		var program []byte
		if len(args) == 2 {
			if program, err = os.ReadFile(args[1]); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
		}
		err = dump.NVN(stdout, data, program)
	default:
		fmt.Fprintf(stderr, "Error: unknown container magic: 0x%08X\n", magic)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
