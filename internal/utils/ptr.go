package utils

import "strings"

func Ptr[T any](v T) *T {
	return &v
}

// Returns nil on an empty or all whitespace string
func StringOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeUsername is the case-insensitive key used for affiliate usernames.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
