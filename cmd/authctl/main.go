// Command authctl is an operator helper: it hashes passwords for user import
// files and signs device requests for debugging field tablets.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"printer-fieldops/internal/auth"
	"printer-fieldops/internal/config"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var now = time.Now

const usage = `usage:
  authctl hash [-iterations N]
  authctl sign -method METHOD -path PATH [-body FILE] [-device ID]
`

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "hash":
		err = runHash(args[1:], stdout, stderr)
	case "sign":
		err = runSign(args[1:], stdin, stdout, stderr)
	default:
		fmt.Fprint(stderr, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "authctl %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func runHash(args []string, stdout io.Writer, stderr io.Writer) error {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	iterations := fs.Int("iterations", defaultIterations(), "pbkdf2 iteration count (PBKDF2_ITERATIONS)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *iterations < config.MinPBKDF2Iterations {
		return fmt.Errorf("iterations must be at least %d", config.MinPBKDF2Iterations)
	}

	password, err := promptPassword(stderr, "Password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword(stderr, "Repeat password: ")
	if err != nil {
		return err
	}
	if !bytes.Equal(password, confirm) {
		return errors.New("passwords do not match")
	}
	if err := auth.ValidatePassword(string(password)); err != nil {
		return err
	}

	hasher, err := auth.NewHasher(*iterations)
	if err != nil {
		return err
	}
	digest, algorithm, err := hasher.Hash(string(password))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "hash_algorithm: %s\npassword_hash: %s\n", algorithm, digest)
	return nil
}

func runSign(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(stderr)
	method := fs.String("method", "GET", "HTTP method")
	path := fs.String("path", "", "request path including query, e.g. /installations?limit=10")
	bodyFile := fs.String("body", "", "file holding the exact request body; - reads stdin")
	deviceID := fs.String("device", "", "optional X-Device-ID value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !strings.HasPrefix(*path, "/") {
		return errors.New("-path must start with /")
	}

	secret := strings.TrimSpace(os.Getenv("DEVICE_HMAC_SECRET"))
	if secret == "" {
		return errors.New("DEVICE_HMAC_SECRET is not set")
	}

	var body []byte
	var err error
	switch *bodyFile {
	case "":
	case "-":
		body, err = io.ReadAll(stdin)
	default:
		body, err = os.ReadFile(*bodyFile)
	}
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	timestamp := strconv.FormatInt(now().Unix(), 10)
	signature := auth.SignRequest([]byte(secret), strings.ToUpper(*method), *path, timestamp, body)

	fmt.Fprintf(stdout, "%s: %s\n%s: %s\n", auth.HeaderTimestamp, timestamp, auth.HeaderSignature, signature)
	if *deviceID != "" {
		fmt.Fprintf(stdout, "%s: %s\n", auth.HeaderDeviceID, *deviceID)
	}
	return nil
}

func defaultIterations() int {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("PBKDF2_ITERATIONS"))); err == nil && n > 0 {
		return n
	}
	return auth.DefaultPBKDF2Iterations
}

func promptPassword(w io.Writer, prompt string) ([]byte, error) {
	fmt.Fprint(w, prompt)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}
