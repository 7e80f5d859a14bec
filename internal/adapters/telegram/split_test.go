package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageRespectsLimit(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("a", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("b", 2000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("c", 500))

	parts := SplitMessage(builder.String(), 0)
	if len(parts) != 2 {
		t.Fatalf("ожидалось 2 части, получено %d", len(parts))
	}
	for i, part := range parts {
		if length := len([]rune(part)); length > MessageLimit {
			t.Fatalf("часть %d превышает лимит: %d", i, length)
		}
	}
	if parts[0] != strings.Repeat("a", 3000) {
		t.Fatalf("неожиданное содержимое первой части")
	}
	if !strings.HasPrefix(parts[1], "b") || !strings.HasSuffix(parts[1], strings.Repeat("c", 500)) {
		t.Fatalf("вторая часть должна содержать блоки b и c")
	}
}

func TestSplitMessageOnSpaces(t *testing.T) {
	parts := SplitMessage("раз два три четыре", 9)
	want := []string{"раз два", "три", "четыре"}
	if len(parts) != len(want) {
		t.Fatalf("ожидалось %v, получено %v", want, parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("часть %d: ожидалось %q, получено %q", i, want[i], parts[i])
		}
	}
}

func TestSplitMessageHardCut(t *testing.T) {
	parts := SplitMessage(strings.Repeat("x", 25), 10)
	if len(parts) != 3 || parts[2] != "xxxxx" {
		t.Fatalf("неожиданное разбиение: %v", parts)
	}
}

func TestSplitMessageShortAndEmpty(t *testing.T) {
	if parts := SplitMessage("hello world", 0); len(parts) != 1 || parts[0] != "hello world" {
		t.Fatalf("короткий текст должен остаться целым: %v", parts)
	}
	if parts := SplitMessage("   \n  ", 0); len(parts) != 0 {
		t.Fatalf("пустой текст не должен давать частей: %v", parts)
	}
}
