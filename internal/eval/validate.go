package eval

import (
	"fmt"
	"strings"
	"unicode"
)

// Validate rejects anything beyond comparisons, boolean logic, parentheses and
// literals. Contents of string literals are not inspected.
func Validate(cond string) error {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return nil
	}

	code, err := stripStringLiterals(cond)
	if err != nil {
		return err
	}

	illegalChars := []rune{'{', '}', '[', ']', ';', ':', '?', '@', '#', '$', '\\'}
	for _, ch := range illegalChars {
		if strings.ContainsRune(code, ch) {
			return fmt.Errorf("illegal character %q", ch)
		}
	}

	for i := 0; i < len(code); i++ {
		if code[i] != '.' {
			continue
		}
		if i == 0 || i == len(code)-1 || !isDigit(code[i-1]) || !isDigit(code[i+1]) {
			return fmt.Errorf("dot access is not allowed")
		}
	}

	illegalOps := []string{"+", "-", "*", "/", "%"}
	for _, op := range illegalOps {
		if strings.Contains(code, op) {
			return fmt.Errorf("arithmetic operator %q is not allowed", op)
		}
	}

	for i := 0; i < len(code)-1; i++ {
		if code[i] == '(' {
			j := i - 1
			for j >= 0 && unicode.IsSpace(rune(code[j])) {
				j--
			}
			if j >= 0 && (unicode.IsLetter(rune(code[j])) || code[j] == '_') {
				k := j
				for k >= 0 && (unicode.IsLetter(rune(code[k])) || unicode.IsDigit(rune(code[k])) || code[k] == '_') {
					k--
				}
				ident := strings.TrimSpace(code[k+1 : j+1])
				if ident != "" && !isKeyword(ident) {
					return fmt.Errorf("function calls are not allowed (found %q(...))", ident)
				}
			}
		}
	}

	return nil
}

// stripStringLiterals blanks out quoted text so the checks above only see code.
func stripStringLiterals(cond string) (string, error) {
	var b strings.Builder
	var quote rune
	escape := false
	for _, r := range cond {
		switch {
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
			b.WriteRune(r)
		case quote != 0 && escape:
			escape = false
			b.WriteRune('x')
		case quote != 0 && r == '\\':
			escape = true
			b.WriteRune('x')
		case quote != 0 && r == quote:
			quote = 0
			b.WriteRune(r)
		case quote != 0:
			b.WriteRune('x')
		default:
			b.WriteRune(r)
		}
	}
	if quote != 0 {
		return "", fmt.Errorf("unterminated string literal")
	}
	return b.String(), nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isKeyword(ident string) bool {
	switch ident {
	case "and", "or", "not", "in":
		return true
	}
	return false
}
