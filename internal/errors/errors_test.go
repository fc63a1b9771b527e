package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindInvalidArguments, "invalid arguments"},
		{KindInvalidScene, "invalid scene"},
		{KindSourceOpenFailed, "source open failed"},
		{KindDecodeFailed, "decode failed"},
		{KindEncoderExited, "encoder exited"},
		{KindStdinClosed, "stdin closed"},
		{KindLogIOError, "resume log I/O error"},
		{KindMetricFailed, "metric failed"},
		{KindCropDetectionFailed, "crop detection failed"},
		{KindProbeFailed, "probe failed"},
		{KindSceneDetectFailed, "scene detection failed"},
		{KindMuxFailed, "mux failed"},
		{KindCancelled, "cancelled"},
		{ErrorKind(99), "unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCoreErrorError(t *testing.T) {
	wrapped := &CoreError{
		Kind:       KindSourceOpenFailed,
		Message:    "failed to open source in.mkv",
		Underlying: errors.New("no such file"),
	}
	if got := wrapped.Error(); got != "source open failed: failed to open source in.mkv: no such file" {
		t.Errorf("Error() = %q", got)
	}

	bare := &CoreError{Kind: KindInvalidArguments, Message: "missing input"}
	if got := bare.Error(); got != "invalid arguments: missing input" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCoreErrorUnwrapAndIs(t *testing.T) {
	underlying := errors.New("root cause")
	err := &CoreError{Kind: KindLogIOError, Message: "persist", Underlying: underlying}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should see through to the underlying error")
	}
	if !err.Is(&CoreError{Kind: KindLogIOError}) {
		t.Error("errors of the same kind should match")
	}
	if err.Is(&CoreError{Kind: KindMuxFailed}) {
		t.Error("errors of different kinds must not match")
	}
	if err.Is(errors.New("plain")) {
		t.Error("a plain error must not match a CoreError")
	}
}

func TestCommandError(t *testing.T) {
	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{
			name: "start failure",
			err:  &CommandError{Command: "SvtAv1EncApp", Kind: CommandStart, Underlying: errors.New("not found")},
			want: "failed to execute SvtAv1EncApp: not found",
		},
		{
			name: "wait failure",
			err:  &CommandError{Command: "mkvmerge", Kind: CommandWait, Underlying: errors.New("signal: killed")},
			want: "failed to wait for mkvmerge: signal: killed",
		},
		{
			name: "non-zero exit with stderr",
			err:  &CommandError{Command: "ffmpeg", Kind: CommandFailed, ExitCode: 1, Stderr: "No streams found"},
			want: "command ffmpeg failed with exit code 1: No streams found",
		},
		{
			name: "non-zero exit without stderr",
			err:  &CommandError{Command: "ffmpeg", Kind: CommandFailed, ExitCode: 2},
			want: "command ffmpeg failed with exit code 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstructorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  *CoreError
		kind ErrorKind
	}{
		{"invalid arguments", NewInvalidArgumentsError("bad flag"), KindInvalidArguments},
		{"invalid scene", NewInvalidSceneError(3, 100, 100, 0), KindInvalidScene},
		{"source open", NewSourceOpenError("in.mkv", errors.New("boom")), KindSourceOpenFailed},
		{"decode", NewDecodeError(7), KindDecodeFailed},
		{"encoder exited", NewEncoderExitedError(1, 137, "oom"), KindEncoderExited},
		{"stdin closed", NewStdinClosedError(2, 48), KindStdinClosed},
		{"log io", NewLogIOError(errors.New("disk full")), KindLogIOError},
		{"metric", NewMetricFailedError(4, errors.New("gpu")), KindMetricFailed},
		{"crop detection", NewCropDetectionError(errors.New("no frames")), KindCropDetectionFailed},
		{"probe", NewProbeError("in.mkv", errors.New("parse")), KindProbeFailed},
		{"scene detect", NewSceneDetectError(errors.New("exit 1")), KindSceneDetectFailed},
		{"mux", NewMuxError("bad ivf", errors.New("exit 2")), KindMuxFailed},
		{"cancelled", NewCancelledError(), KindCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if !IsKind(tt.err, tt.kind) {
				t.Errorf("IsKind(%v) = false", tt.kind)
			}
		})
	}
}

func TestInvalidSceneMessage(t *testing.T) {
	err := NewInvalidSceneError(12, 480, 481, 1)
	for _, part := range []string{"scene 12", "[480,481)", "length 1"} {
		if !strings.Contains(err.Error(), part) {
			t.Errorf("message %q missing %q", err.Error(), part)
		}
	}
}

func TestEncoderExitedCarriesCommandError(t *testing.T) {
	err := NewEncoderExitedError(5, 3, "corrupt input")

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatal("expected a CommandError underneath")
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cmdErr.ExitCode)
	}
	if cmdErr.Stderr != "corrupt input" {
		t.Errorf("Stderr = %q", cmdErr.Stderr)
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(NewCancelledError()) {
		t.Error("IsCancelled missed a cancellation error")
	}
	if IsCancelled(NewDecodeError(0)) {
		t.Error("IsCancelled matched a decode error")
	}
	if IsCancelled(errors.New("plain")) {
		t.Error("IsCancelled matched a plain error")
	}
}
