package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"vinted-monitor/storage"
)

// ErrInvalidCountry is returned for codes that are not two letters.
var ErrInvalidCountry = errors.New("services: invalid country code")

// AllowlistService edits the seller country allowlist.
type AllowlistService struct {
	store storage.AllowlistStore
}

// NewAllowlistService creates an AllowlistService.
func NewAllowlistService(store storage.AllowlistStore) *AllowlistService {
	return &AllowlistService{store: store}
}

// AddCountry adds a country and returns the reply with the updated list.
func (s *AllowlistService) AddCountry(ctx context.Context, code string) (string, []string, error) {
	current, err := s.store.Allowlist(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("services: add country: %w", err)
	}

	country, ok := normaliseCountry(code)
	if !ok {
		return "Invalid country code", current, ErrInvalidCountry
	}
	if slices.Contains(current, country) {
		return fmt.Sprintf("Country %q already in allowlist.", country), current, nil
	}

	if err := s.store.AddCountry(ctx, country); err != nil {
		return "", current, fmt.Errorf("services: add country: %w", err)
	}
	updated, err := s.store.Allowlist(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("services: add country: %w", err)
	}
	return "Country added.", updated, nil
}

// RemoveCountry removes a country and returns the reply with the updated list.
func (s *AllowlistService) RemoveCountry(ctx context.Context, code string) (string, []string, error) {
	country, ok := normaliseCountry(code)
	if !ok {
		current, err := s.store.Allowlist(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("services: remove country: %w", err)
		}
		return "Invalid country code", current, ErrInvalidCountry
	}

	if err := s.store.RemoveCountry(ctx, country); err != nil {
		return "", nil, fmt.Errorf("services: remove country: %w", err)
	}
	updated, err := s.store.Allowlist(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("services: remove country: %w", err)
	}
	return "Country removed.", updated, nil
}

// Allowlist returns the current allowlist.
func (s *AllowlistService) Allowlist(ctx context.Context) ([]string, error) {
	countries, err := s.store.Allowlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("services: allowlist: %w", err)
	}
	return countries, nil
}

// FormatAllowlist renders the allowlist for a chat reply.
func FormatAllowlist(countries []string) string {
	if len(countries) == 0 {
		return "Allowlist is empty. Items from every country are accepted."
	}
	return "Allowed countries: " + strings.Join(countries, ", ")
}

func normaliseCountry(code string) (string, bool) {
	code = strings.ReplaceAll(code, " ", "")
	if len(code) != 2 {
		return "", false
	}
	for _, r := range code {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "", false
		}
	}
	return strings.ToUpper(code), true
}
