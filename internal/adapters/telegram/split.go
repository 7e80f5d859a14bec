package telegram

import "strings"

// MessageLimit — максимальная длина сообщения Telegram в символах.
const MessageLimit = 4096

// SplitMessage разбивает текст на части не длиннее limit символов.
// Сначала ищется перевод строки, затем пробел, иначе часть режется по лимиту.
// limit <= 0 означает MessageLimit.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	if len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			if chunk := strings.TrimSpace(string(runes[start:])); chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}

		split := lastBreak(runes, start, end, '\n')
		if split == -1 {
			split = lastBreak(runes, start, end, ' ')
		}
		if split == -1 {
			split = end
		}
		if chunk := strings.TrimSpace(string(runes[start:split])); chunk != "" {
			parts = append(parts, chunk)
		}

		start = split
		for start < len(runes) && (runes[start] == '\n' || runes[start] == ' ') {
			start++
		}
	}
	return parts
}

func lastBreak(runes []rune, start, end int, sep rune) int {
	for i := end; i > start; i-- {
		if runes[i-1] == sep {
			return i
		}
	}
	return -1
}
