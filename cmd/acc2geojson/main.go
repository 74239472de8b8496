package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/woozymasta/crashmap/internal/accident"
	"github.com/woozymasta/crashmap/internal/geo"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Input     string `short:"i" long:"in" description:"Accidents CSV (optionally .gz) path or URL. Reads plain CSV from stdin if empty"`
	Output    string `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Format    string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
	Region    string `short:"r" long:"region" description:"Keep only records of this region code"`
	Delimiter string `short:"d" long:"delimiter" description:"CSV field delimiter" default:","`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	delimiter := ','
	if opts.Delimiter != "" {
		delimiter = []rune(opts.Delimiter)[0]
	}

	table, err := load(opts.Input, delimiter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading accidents: %v\n", err)
		os.Exit(1)
	}

	if opts.Region != "" {
		table = table.Filter(accident.InRegion(opts.Region))
	}

	wgs, err := table.Reproject(geo.WGS84)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reprojecting: %v\n", err)
		os.Exit(1)
	}

	outputData, err := wgs.FeatureCollection().MarshalJSON()
	if err == nil && opts.Format == "yaml" {
		outputData, err = toYAML(outputData)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data: %v\n", err)
		os.Exit(1)
	}

	if opts.Output != "" {
		err = os.WriteFile(opts.Output, outputData, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Successfully converted %d accidents to %s (format: %s)\n", wgs.Len(), opts.Output, opts.Format)
	} else {
		fmt.Println(string(outputData))
	}
}

func load(source string, delimiter rune) (*accident.Table, error) {
	if source != "" {
		return accident.Load(context.Background(), http.DefaultClient, source, delimiter)
	}

	df, err := accident.ReadFrame(os.Stdin, delimiter)
	if err != nil {
		return nil, err
	}
	return accident.MakeGeo(df)
}

func toYAML(data []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}
