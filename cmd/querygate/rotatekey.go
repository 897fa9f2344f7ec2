package main

import (
	"context"
	"fmt"
	"os"

	"github.com/querygate/querygate/internal/store"
	"github.com/querygate/querygate/internal/vault"

	"github.com/rs/zerolog"
)

// runRotateKey re-encrypts every stored credential under a fresh master key.
// Rotation is journaled: if this process dies mid-way, the next startup (or
// the next rotate-key run) finishes it.
func runRotateKey() error {
	ctx := context.Background()

	serverConfig, err := loadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.NewFileStore(storeDir(serverConfig))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	v := vault.New(st, logger)
	if err := v.ResumeRotation(ctx); err != nil {
		return fmt.Errorf("failed to finish a pending rotation: %w", err)
	}

	count, err := v.RotateMasterKey(ctx)
	if err != nil {
		return fmt.Errorf("rotation failed: %w", err)
	}

	fmt.Printf("Master key rotated; %d credential(s) re-encrypted.\n", count)
	fmt.Println("Restart any running querygate server so it picks up the new key.")
	return nil
}
