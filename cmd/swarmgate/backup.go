package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/avlonitis/swarmgate/internal/backup"
	"github.com/avlonitis/swarmgate/internal/config"
)

// dataDirFromConfig resolves the directory holding the sqlite store and the
// NATS JetStream files. Both default to subpaths of the same data dir.
func dataDirFromConfig() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return filepath.Dir(cfg.Store.Path), nil
}

func runBackup(args []string) error {
	var outputPath string
	var dataDir string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			outputPath = args[i]
		case "-data":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -data")
			}
			i++
			dataDir = args[i]
		}
	}

	if outputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: swarmgate backup -f <output.tar.zst> [-data <data-dir>]\n")
		return fmt.Errorf("missing -f flag")
	}
	if dataDir == "" {
		var err error
		dataDir, err = dataDirFromConfig()
		if err != nil {
			return err
		}
	}

	if err := backup.Create(dataDir, outputPath); err != nil {
		return err
	}

	info, _ := os.Stat(outputPath)
	size := int64(0)
	if info != nil {
		size = info.Size()
	}

	fmt.Printf("Backup complete: %s, %s\n", outputPath, backup.FormatSize(size))
	return nil
}

func runRestore(args []string) error {
	var inputPath string
	var dataDir string
	overwrite := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			inputPath = args[i]
		case "-overwrite":
			overwrite = true
		case "-data":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -data")
			}
			i++
			dataDir = args[i]
		}
	}

	if inputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: swarmgate restore -f <backup.tar.zst> [-overwrite] [-data <data-dir>]\n")
		return fmt.Errorf("missing -f flag")
	}
	if dataDir == "" {
		var err error
		dataDir, err = dataDirFromConfig()
		if err != nil {
			return err
		}
	}

	if err := backup.Restore(inputPath, dataDir, overwrite); err != nil {
		return err
	}

	fmt.Printf("Restore complete: %s\n", dataDir)
	return nil
}
