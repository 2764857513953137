package handlers

import "strconv"

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func clampMessageLimit(limit int) int {
	if limit > maxMessageLimit {
		return maxMessageLimit
	}
	return limit
}
