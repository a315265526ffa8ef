package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
//
// Example prompt format:
//
//	Prompt text
//	> _
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetMultiline prints a prompt to w and reads lines until an empty line or
// EOF. The collected text is joined with '\n'.
func GetMultiline(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n(press Enter on an empty line to finish)\n"); err != nil {
		return "", err
	}

	var lines []string
	for {
		line, _ := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// GetEdited shows the current value and reads a replacement. An empty line
// keeps current; a single "-" clears the field. changed reports whether the
// result differs from current.
func GetEdited(reader *bufio.Reader, label, current string, w io.Writer) (value string, changed bool, err error) {
	shown := current
	if shown == "" {
		shown = "(empty)"
	}
	line, err := GetSimpleText(reader, fmt.Sprintf("%s [%s]", label, shown), w)
	if err != nil && !errors.Is(err, io.EOF) {
		return current, false, err
	}
	switch line {
	case "":
		return current, false, nil
	case "-":
		return "", current != "", nil
	default:
		return line, line != current, nil
	}
}
