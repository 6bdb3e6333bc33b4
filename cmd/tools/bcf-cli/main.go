package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/annel0/voxel-engine/internal/bcf"
	"github.com/annel0/voxel-engine/internal/compress"
	"github.com/annel0/voxel-engine/internal/cube"
)

// options параметры одной команды
type options struct {
	Command string
	In      string
	Out     string
	Level   int
	Depth   int
	All     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.Command, "cmd", "info", "Command: info, stats, dump, compress, decompress")
	flag.StringVar(&opts.In, "in", "", "Input BCF file (raw or zstd)")
	flag.StringVar(&opts.Out, "out", "", "Output file for compress/decompress")
	flag.IntVar(&opts.Level, "level", 3, "zstd level for compress (1..22)")
	flag.IntVar(&opts.Depth, "depth", -1, "Max depth for dump (-1 = whole tree)")
	flag.BoolVar(&opts.All, "all", false, "Dump empty leaves too")
	flag.Parse()

	if opts.In == "" {
		fmt.Println("❌ -in is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(opts, os.Stdout); err != nil {
		log.Fatalf("❌ %s failed: %v", opts.Command, err)
	}
}

func run(opts options, stdout io.Writer) error {
	codec, err := compress.NewCodec(true, opts.Level)
	if err != nil {
		return err
	}
	defer codec.Close()

	input, err := os.ReadFile(opts.In)
	if err != nil {
		return err
	}

	switch opts.Command {
	case "compress":
		if compress.IsCompressed(input) {
			return errors.New("input is already zstd-compressed")
		}
		if _, err := bcf.NewReader(input).ReadHeader(); err != nil {
			return fmt.Errorf("input is not BCF: %w", err)
		}
		return writeOutput(opts.Out, codec.Encode(input), len(input), stdout)
	case "decompress":
		data, err := codec.Decode(input)
		if err != nil {
			return err
		}
		return writeOutput(opts.Out, data, len(input), stdout)
	}

	data, err := codec.Decode(input)
	if err != nil {
		return err
	}

	switch opts.Command {
	case "info":
		info, err := bcf.Inspect(data)
		if err != nil {
			return err
		}
		return printJSON(stdout, struct {
			bcf.Info
			Compressed bool `json:"compressed"`
			FileSize   int  `json:"file_size"`
		}{info, compress.IsCompressed(input), len(input)})
	case "stats":
		root, err := bcf.Parse(data)
		if err != nil {
			return err
		}
		return printJSON(stdout, root.Stats())
	case "dump":
		root, err := bcf.Parse(data)
		if err != nil {
			return err
		}
		return dump(stdout, root, opts.Depth, opts.All)
	default:
		return fmt.Errorf("unknown command %q (available: info, stats, dump, compress, decompress)", opts.Command)
	}
}

func writeOutput(path string, data []byte, inSize int, stdout io.Writer) error {
	if path == "" {
		return errors.New("-out is required")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✅ %s: %d -> %d bytes\n", path, inSize, len(data))
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// dump печатает листья: глубина, угловая позиция, ребро в долях корня и материал
func dump(w io.Writer, root *cube.Cube, depth int, all bool) error {
	maxDepth := uint32(root.MaxDepth())
	if depth >= 0 && uint32(depth) < maxDepth {
		maxDepth = uint32(depth)
	}

	var werr error
	root.VisitLeaves(maxDepth, func(node *cube.Cube, coord cube.CubeCoord) {
		if werr != nil {
			return
		}
		id := node.ID()
		if id == 0 && !all {
			return
		}
		corner := coord.Corner()
		_, werr = fmt.Fprintf(w, "d=%d pos=(%d,%d,%d) size=%g kind=%s value=%d\n",
			coord.Depth, corner.X, corner.Y, corner.Z, coord.Size(), node.Kind(), id)
	})
	return werr
}
