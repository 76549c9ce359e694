package fcrypt

import (
	"fmt"
	"io"
	"os"

	"filippo.io/age"
	"github.com/natefinch/atomic"
)

// EncryptFile writes an armored, encrypted copy of inputPath to outputPath.
// The input file is left in place.
func EncryptFile(inputPath, outputPath string, recipients ...age.Recipient) error {
	inputFile, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() {
		_ = inputFile.Close()
	}()

	outputFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		_ = outputFile.Close()
	}()

	return EncryptReader(inputFile, outputFile, recipients...)
}

// DecryptFile replaces outputPath with the decrypted contents of inputPath.
func DecryptFile(inputPath, outputPath string, identity age.Identity) error {
	inputFile, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() {
		_ = inputFile.Close()
	}()

	pr, pw := io.Pipe()
	defer func() {
		_ = pr.Close()
	}()

	go func() {
		pw.CloseWithError(DecryptReader(inputFile, pw, identity))
	}()

	if err := atomic.WriteFile(outputPath, pr); err != nil {
		return fmt.Errorf("failed to write decrypted file: %w", err)
	}

	return nil
}
