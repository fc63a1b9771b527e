package chunk

import (
	"os"
	"path/filepath"
	"strings"
)

// CmdFileName is the argument snapshot a fresh chunked run writes into its
// work directory. Its presence is what authorizes a later --resume to trust
// done.txt; without it there is no prior run to resume.
const CmdFileName = "cmd.txt"

// HasCmdSnapshot reports whether workDir holds an argument snapshot.
func HasCmdSnapshot(workDir string) bool {
	info, err := os.Stat(filepath.Join(workDir, CmdFileName))
	return err == nil && !info.IsDir()
}

// WriteCmdSnapshot persists args as a single space-joined line, wrapping any
// argument containing a space in double quotes. Written once per fresh run,
// before any decoding begins.
func WriteCmdSnapshot(workDir string, args []string) error {
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.Contains(a, " ") {
			quoted[i] = `"` + a + `"`
		} else {
			quoted[i] = a
		}
	}
	line := strings.Join(quoted, " ") + "\n"
	return os.WriteFile(filepath.Join(workDir, CmdFileName), []byte(line), 0o644)
}

// ReadCmdSnapshot reads the snapshot back into an argument vector, undoing
// the quoting WriteCmdSnapshot applied.
func ReadCmdSnapshot(workDir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(workDir, CmdFileName))
	if err != nil {
		return nil, err
	}
	return splitCmdLine(strings.TrimRight(string(data), "\n")), nil
}

func splitCmdLine(line string) []string {
	var args []string
	var cur strings.Builder
	inQuote := false
	flushed := true

	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			flushed = false
		case r == ' ' && !inQuote:
			if !flushed || cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
				flushed = true
			}
		default:
			cur.WriteRune(r)
			flushed = false
		}
	}
	if !flushed || cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args
}

// ResetResumeLog removes any stale done.txt so a fresh (non-resume) run
// starts with an empty skip set even when it reuses an old work directory.
func ResetResumeLog(workDir string) error {
	err := os.Remove(filepath.Join(workDir, "done.txt"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
