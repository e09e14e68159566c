package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// stdinReader is shared so piped input is not lost between prompts.
var stdinReader = bufio.NewReader(os.Stdin)

// promptLine reads one line from stdin after printing label to stderr.
func promptLine(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := stdinReader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptSecret reads without echo on a terminal and falls back to a plain
// line read when stdin is piped.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(label)
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// promptNewPassword asks for a password and its confirmation.
func promptNewPassword() (string, string, error) {
	pw, err := promptSecret("New password: ")
	if err != nil {
		return "", "", err
	}
	confirm, err := promptSecret("Confirm password: ")
	if err != nil {
		return "", "", err
	}
	return pw, confirm, nil
}

// orPrompt returns value, or asks for it when empty.
func orPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return promptLine(label)
}
