package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/varalys/veil/internal/exceptions"
	"github.com/varalys/veil/internal/types"
)

const defaultExceptionsPath = "ops/exceptions.toml"

var flagExceptionsFile string

func init() {
	cmd := &cobra.Command{Use: "exceptions", Short: "Manage the exception registry"}
	cmd.PersistentFlags().StringVar(&flagExceptionsFile, "file", defaultExceptionsPath, "exception registry path")
	rootCmd.AddCommand(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every exception in the registry",
		RunE:  runExceptionsList,
	})

	var reason string
	var expires string
	addCmd := &cobra.Command{
		Use:   "add <finding-id>",
		Short: "Add or replace an exception by finding id",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runExceptionsAdd(types.FindingId(args[0]), reason, expires)
		},
	}
	addCmd.Flags().StringVar(&reason, "reason", "", "why this finding is accepted risk")
	addCmd.Flags().StringVar(&expires, "expires", "", "RFC3339 expiry timestamp; empty never expires")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <finding-id>",
		Short: "Remove an exception by finding id",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runExceptionsRemove(types.FindingId(args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Drop every expired exception from the registry",
		RunE:  runExceptionsCleanup,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Validate the registry schema and report expired/active counts",
		RunE:  runExceptionsDoctor,
	})
}

func loadRegistryOrEmpty() (*types.ExceptionRegistry, error) {
	reg, err := exceptions.Load(flagExceptionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.ExceptionRegistry{Version: types.ExceptionRegistrySchema}, nil
		}
		return nil, err
	}
	return reg, nil
}

func runExceptionsList(_ *cobra.Command, _ []string) error {
	reg, err := loadRegistryOrEmpty()
	if err != nil {
		return operationalError(fmt.Errorf("exceptions list: %w", err))
	}
	if len(reg.Exceptions) == 0 {
		fmt.Println("No exceptions recorded")
		return nil
	}
	now := time.Now()
	for _, e := range reg.Exceptions {
		state := exceptions.Check(reg, e.ID, now)
		fmt.Printf("%-24s %-10s %s\n", e.ID, state, e.Reason)
	}
	return nil
}

func runExceptionsAdd(id types.FindingId, reason, expires string) error {
	reg, err := loadRegistryOrEmpty()
	if err != nil {
		return operationalError(fmt.Errorf("exceptions add: %w", err))
	}
	exc := types.Exception{ID: id, Reason: reason}
	now := time.Now()
	exc.CreatedAt = &now
	if expires != "" {
		t, perr := time.Parse(time.RFC3339, expires)
		if perr != nil {
			return operationalError(fmt.Errorf("exceptions add: invalid --expires: %w", perr))
		}
		exc.ExpiresAt = &t
	}
	exceptions.Add(reg, exc)
	if err := exceptions.Save(flagExceptionsFile, *reg); err != nil {
		return operationalError(fmt.Errorf("exceptions add: %w", err))
	}
	fmt.Println("Added exception", id)
	return nil
}

func runExceptionsRemove(id types.FindingId) error {
	reg, err := loadRegistryOrEmpty()
	if err != nil {
		return operationalError(fmt.Errorf("exceptions remove: %w", err))
	}
	if !exceptions.Remove(reg, id) {
		return operationalError(fmt.Errorf("exceptions remove: no such exception %q", id))
	}
	if err := exceptions.Save(flagExceptionsFile, *reg); err != nil {
		return operationalError(fmt.Errorf("exceptions remove: %w", err))
	}
	fmt.Println("Removed exception", id)
	return nil
}

func runExceptionsCleanup(_ *cobra.Command, _ []string) error {
	reg, err := loadRegistryOrEmpty()
	if err != nil {
		return operationalError(fmt.Errorf("exceptions cleanup: %w", err))
	}
	n := exceptions.Cleanup(reg, time.Now())
	if err := exceptions.Save(flagExceptionsFile, *reg); err != nil {
		return operationalError(fmt.Errorf("exceptions cleanup: %w", err))
	}
	fmt.Printf("Removed %d expired exception(s)\n", n)
	return nil
}

func runExceptionsDoctor(_ *cobra.Command, _ []string) error {
	reg, err := loadRegistryOrEmpty()
	if err != nil {
		return operationalError(fmt.Errorf("exceptions doctor: %w", err))
	}
	now := time.Now()
	var active, expired int
	for _, e := range reg.Exceptions {
		switch exceptions.Check(reg, e.ID, now) {
		case types.ExceptionActive:
			active++
		case types.ExceptionExpired:
			expired++
		}
	}
	fmt.Printf("registry version: %d\n", reg.Version)
	fmt.Printf("total:            %d\n", len(reg.Exceptions))
	fmt.Printf("active:           %d\n", active)
	fmt.Printf("expired:          %d\n", expired)
	return nil
}
