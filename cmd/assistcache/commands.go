package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrygo/assistcache/internal/profile"
	"github.com/hrygo/assistcache/store"
	"github.com/hrygo/assistcache/store/db"
)

// newStore builds a store from ASSISTCACHE_* environment variables.
func newStore() (*store.Store, error) {
	p, err := profile.FromEnv(version)
	if err != nil {
		return nil, err
	}
	return store.New(p, db.NewDriver), nil
}

// --- clean ---

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete every cached assistant past its TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()

		removed, err := s.CleanExpiredAssistants(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("removed %d expired assistant(s)\n", removed)
		return nil
	},
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Remove cached assistants unknown to the server",
	Long: `Remove cached assistants unknown to the server.

The authoritative id set comes from --server-ids or, one id per line,
from --file.

Examples:
  assistcache validate --server-ids a1,a2,a3
  assistcache validate --file ids.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		idsStr, _ := cmd.Flags().GetString("server-ids")
		file, _ := cmd.Flags().GetString("file")

		var serverIDs []string
		switch {
		case idsStr != "":
			for _, id := range strings.Split(idsStr, ",") {
				if id = strings.TrimSpace(id); id != "" {
					serverIDs = append(serverIDs, id)
				}
			}
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			for _, line := range strings.Split(string(data), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					serverIDs = append(serverIDs, line)
				}
			}
		default:
			return fmt.Errorf("one of --server-ids or --file is required")
		}

		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()

		report, err := s.ValidateConsistency(cmd.Context(), serverIDs)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d inconsistent assistant(s)\n", report.Removed)
		for _, id := range report.Inconsistencies {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

// --- pending ---

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect the pending-write queue",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staged assistants waiting for sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()

		pendings, err := s.ListPendingAssistants(cmd.Context())
		if err != nil {
			return err
		}
		if len(pendings) == 0 {
			fmt.Println("no pending assistants")
			return nil
		}
		for _, p := range pendings {
			created := time.UnixMilli(p.CreatedTs).Format(time.RFC3339)
			fmt.Printf("%s  created=%s retries=%d", p.TempID, created, p.RetryCount)
			if p.LastError != "" {
				fmt.Printf(" lastError=%q", p.LastError)
			}
			fmt.Println()
		}
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache and queue sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()

		assistants, err := s.ListAssistants(cmd.Context())
		if err != nil {
			return err
		}
		pendings, err := s.ListPendingAssistants(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("assistants: %d\npending:    %d\n", len(assistants), len(pendings))
		return nil
	},
}

func init() {
	validateCmd.Flags().String("server-ids", "", "comma-separated authoritative ids")
	validateCmd.Flags().String("file", "", "file with one authoritative id per line")

	pendingCmd.AddCommand(pendingListCmd)
	rootCmd.AddCommand(cleanCmd, validateCmd, pendingCmd, statsCmd)
}
