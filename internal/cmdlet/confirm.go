package cmdlet

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirmation asks user to approve destructive operations.
type Confirmation interface {
	// ShouldProcess returns true when operation is approved.
	ShouldProcess(caption, message string) bool
}

// PromptConfirmation asks user in terminal.
type PromptConfirmation struct {
	Input  io.Reader
	Output io.Writer
}

func NewPromptConfirmation(input io.Reader, output io.Writer) *PromptConfirmation {
	return &PromptConfirmation{Input: input, Output: output}
}

// ShouldProcess returns true only if user answers "y" or "yes".
//
// Read errors are treated as refusal.
func (c *PromptConfirmation) ShouldProcess(caption, message string) bool {
	if _, err := fmt.Fprintf(c.Output, "%s\n%s [y/N]: ", caption, message); err != nil {
		return false
	}
	line, err := bufio.NewReader(c.Input).ReadString('\n')
	if err != nil && len(line) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func shouldProcess(force bool, confirmation Confirmation, caption, message string) bool {
	return force || confirmation.ShouldProcess(caption, message)
}
