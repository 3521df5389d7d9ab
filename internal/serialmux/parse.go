package serialmux

import "strings"

// CLI response classes for lines echoed by the sensor's command port.
const (
	LineAck     = "ack"     // "Done" after a successfully applied command
	LineError   = "error"   // rejected command or firmware fault
	LinePrompt  = "prompt"  // the interactive shell prompt
	LineEcho    = "echo"    // the command itself echoed back
	LineUnknown = "unknown" // banner text, debug chatter
)

// ClassifyLine inspects one command-port line and returns its class token.
// The classification is intentionally conservative: anything not clearly an
// ack, error, or prompt is left unknown rather than guessed at.
func ClassifyLine(line string) string {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "Done":
		return LineAck
	case strings.HasPrefix(trimmed, "Error"):
		return LineError
	case strings.HasPrefix(trimmed, "mmwDemo:/>"):
		return LinePrompt
	case strings.HasPrefix(trimmed, "sensorStop") ||
		strings.HasPrefix(trimmed, "sensorStart") ||
		strings.HasPrefix(trimmed, "flushCfg"):
		return LineEcho
	}
	return LineUnknown
}
