package model

import (
	"fmt"
	"strings"
	"time"
)

// Repository is a GitHub repository watched by the monitor.
type Repository struct {
	ID       int64
	FullName string // "owner/name".
	Owner    string
	Name     string
	AddedAt  time.Time
}

// NewRepository builds a Repository from an "owner/name" string.
func NewRepository(fullName string) (Repository, error) {
	owner, name, err := SplitRepoFullName(fullName)
	if err != nil {
		return Repository{}, err
	}
	return Repository{FullName: fullName, Owner: owner, Name: name}, nil
}

// SplitRepoFullName splits an "owner/name" string into its two components.
func SplitRepoFullName(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/name", fullName)
	}
	return parts[0], parts[1], nil
}
