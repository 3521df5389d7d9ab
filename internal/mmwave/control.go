package mmwave

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// CommandPort is the minimal capability the controller needs from the CLI
// control port. Satisfied by serialmux.SerialMuxInterface.
type CommandPort interface {
	SendCommand(string) error
}

// Controller drives the sensor's line-based CLI port: profile configuration
// before streaming starts and sensorStart/sensorStop around the data stream.
type Controller struct {
	port CommandPort

	// CommandDelay is the pause after each command so the firmware can echo
	// and apply it before the next one arrives.
	CommandDelay time.Duration
}

// NewController returns a Controller over the given CLI port.
func NewController(port CommandPort) *Controller {
	return &Controller{
		port:         port,
		CommandDelay: 100 * time.Millisecond,
	}
}

func (c *Controller) send(command string) error {
	if err := c.port.SendCommand(command); err != nil {
		return fmt.Errorf("send %q: %w", command, err)
	}
	if c.CommandDelay > 0 {
		time.Sleep(c.CommandDelay)
	}
	return nil
}

// ApplyProfile stops the sensor, flushes any staged configuration, and
// streams the profile line-by-line. Inline "%" comments and blank lines are
// stripped, matching the .cfg files shipped with the firmware demos.
func (c *Controller) ApplyProfile(profile io.Reader) error {
	if err := c.send("sensorStop"); err != nil {
		return err
	}
	if err := c.send("flushCfg"); err != nil {
		return err
	}

	scan := bufio.NewScanner(profile)
	for scan.Scan() {
		line := scan.Text()
		if i := strings.Index(line, "%"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := c.send(line); err != nil {
			return err
		}
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	return nil
}

// Start begins streaming on the data port.
func (c *Controller) Start() error {
	return c.send("sensorStart")
}

// Stop halts streaming. Called between frames on shutdown so no partially
// read frame is lost.
func (c *Controller) Stop() error {
	return c.send("sensorStop")
}
