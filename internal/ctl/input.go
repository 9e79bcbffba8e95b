package ctl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptSecret prints prompt to w and reads a line from the terminal without
// echo. The caller should wipe the returned slice when done.
func promptSecret(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// readLine reads one line from r with the trailing newline trimmed. A final
// line without a newline is returned as is.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// secretInput returns the value passed as the only argument, a line from
// stdin when fromStdin is set, or a no-echo terminal prompt otherwise.
func secretInput(in io.Reader, out io.Writer, args []string, fromStdin bool, prompt string) ([]byte, error) {
	switch {
	case len(args) > 0:
		return []byte(args[0]), nil
	case fromStdin:
		s, err := readLine(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return []byte(s), nil
	default:
		return promptSecret(out, prompt)
	}
}
