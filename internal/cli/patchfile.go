package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/sdde/internal/engine"
	"github.com/roach88/sdde/internal/record"
)

// Patch files hold raw wire bytes unless their name ends in .hex, in which
// case they hold the hex encoding, optionally wrapped across lines.
const hexPatchExt = ".hex"

func readPatchFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("patch not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	if filepath.Ext(path) != hexPatchExt {
		return data, nil
	}

	wire, err := hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInvalidHex, Message: fmt.Sprintf("decoding %s: %v", path, err)}
	}
	return wire, nil
}

func writePatchFile(path string, wire []byte) error {
	data := wire
	if filepath.Ext(path) == hexPatchExt {
		data = []byte(hex.EncodeToString(wire) + "\n")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing %s: %v", path, err)}
	}
	return nil
}

// failLoad reports a LoadError (or any other error) as a command error.
func failLoad(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return f.Fail(ExitCommandError, loadErr.Code, loadErr.Error(), nil)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

// failPatch reports an engine rejection. Rejections are failures of the
// input, not of the command, so they exit with ExitFailure. Malformed
// patches name the failing layer (patch framing or a difference record)
// and the byte offset in the details.
func failPatch(f *OutputFormatter, err error) error {
	var engErr *engine.EngineError
	if errors.As(err, &engErr) {
		if engErr.Code == engine.ErrCodeCRCMismatch {
			return f.Fail(ExitFailure, ErrCodeCRCMismatch, err.Error(), engErr.Details)
		}
		details := map[string]string{"layer": "framing"}
		if record.IsDecodeError(err) {
			details["layer"] = "record"
		}
		if engErr.Offset >= 0 {
			details["offset"] = strconv.Itoa(engErr.Offset)
		}
		return f.Fail(ExitFailure, ErrCodeInvalidPatch, err.Error(), details)
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
