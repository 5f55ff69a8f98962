package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// Mixer combines finalized source files into one output file.
type Mixer interface {
	Mix(ctx context.Context, inputs []string, output string) error
}

// FFMPEGMixer mixes inputs with the amix filter. Inputs share one negotiated
// format, so no resampling is requested.
type FFMPEGMixer struct {
	command string
}

func NewFFMPEGMixer(command string) *FFMPEGMixer {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGMixer{command: command}
}

func (m *FFMPEGMixer) Mix(ctx context.Context, inputs []string, output string) error {
	if len(inputs) < 2 {
		return errors.New("mix needs at least two inputs")
	}

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
	filter := ""
	for i, input := range inputs {
		args = append(args, "-i", input)
		filter += "[" + strconv.Itoa(i) + ":a]"
	}
	filter += "amix=inputs=" + strconv.Itoa(len(inputs)) + ":duration=longest:dropout_transition=0[a]"
	args = append(args, "-filter_complex", filter, "-map", "[a]", "-n", output)

	cmd := exec.CommandContext(ctx, m.command, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("merging audio: %w: %s", err, stringsTrimSpaceSafe(string(out)))
	}
	return nil
}
