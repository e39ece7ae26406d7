package main

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/mkarag/venturo/internal/config"
	"github.com/mkarag/venturo/internal/store"
)

const exportPageSize = 200

// runExport writes every conversation in the store to a zstd-compressed
// tar archive, one JSON file per conversation.
func runExport(args []string) error {
	var outputPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			i++
			outputPath = args[i]
		}
	}
	if outputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: venturo export -f <output.tar.zst>\n")
		return fmt.Errorf("missing -f flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := newStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	n, err := exportConversations(db, outputPath)
	if err != nil {
		return err
	}

	fmt.Printf("Export complete: %d conversations, %s\n", n, outputPath)
	return nil
}

func exportConversations(db store.Store, outputPath string) (int, error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	exported := 0
	for offset := 0; ; offset += exportPageSize {
		page, _, err := db.List(exportPageSize, offset)
		if err != nil {
			return exported, fmt.Errorf("list conversations: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, conv := range page {
			if err := writeConversation(tw, conv); err != nil {
				return exported, fmt.Errorf("write conversation %s: %w", conv.ID, err)
			}
			exported++
		}
		if len(page) < exportPageSize {
			break
		}
	}

	// Close everything explicitly to catch write errors
	if err := tw.Close(); err != nil {
		return exported, fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return exported, fmt.Errorf("close zstd: %w", err)
	}
	if err := f.Close(); err != nil {
		return exported, fmt.Errorf("close file: %w", err)
	}

	return exported, nil
}

func writeConversation(tw *tar.Writer, conv store.Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	hdr := &tar.Header{
		Name:    "conversations/" + conv.ID + ".json",
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: modTime(conv),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

func modTime(conv store.Conversation) time.Time {
	if conv.CompletedAt != nil {
		return *conv.CompletedAt
	}
	return conv.CreatedAt
}
