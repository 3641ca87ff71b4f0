package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// errNoDirectoryChosen is returned when input ends before a valid choice.
var errNoDirectoryChosen = errors.New("no watch directory chosen")

// promptWatchDir asks the user which directory to watch. Choice "1" selects
// defaultDir; "2" reads a custom path that must exist and be a directory.
// Invalid input re-displays the choice.
func promptWatchDir(in io.Reader, out io.Writer, defaultDir string) (string, error) {
	sc := bufio.NewScanner(in)

	fmt.Fprintf(out, "\nDefault watch directory: %s\n", defaultDir)
	fmt.Fprintln(out, "\nOptions:")
	fmt.Fprintln(out, "  1. Watch the directory containing pdfwatch")
	fmt.Fprintln(out, "  2. Enter a custom directory path")

	for {
		fmt.Fprint(out, "\nEnter choice (1 or 2): ")

		choice, ok := readLine(sc)
		if !ok {
			return "", errNoDirectoryChosen
		}

		switch choice {
		case "1":
			return defaultDir, nil
		case "2":
			fmt.Fprint(out, "Enter directory path to watch: ")

			path, ok := readLine(sc)
			if !ok {
				return "", errNoDirectoryChosen
			}

			if err := checkDirectory(path); err != nil {
				fmt.Fprintf(out, "ERROR: %v\n", err)
				continue
			}

			return filepath.Abs(path)
		default:
			fmt.Fprintln(out, "Invalid choice. Please enter 1 or 2.")
		}
	}
}

func readLine(sc *bufio.Scanner) (string, bool) {
	if !sc.Scan() {
		return "", false
	}

	return strings.TrimSpace(sc.Text()), true
}

func checkDirectory(path string) error {
	if path == "" {
		return errors.New("directory path is empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("directory does not exist: %s", path)
		}

		return err
	}

	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return nil
}

// executableDir returns the directory holding the running binary.
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	return filepath.Dir(exe), nil
}
