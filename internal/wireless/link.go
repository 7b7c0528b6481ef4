// Package wireless abstracts the cellular/modem bearer the connectivity
// supervisor starts, stops, and terminates. The modem control layer
// itself (AT commands, PPP negotiation, carrier selection) is an
// external collaborator; this package only defines the contract the
// supervisor drives and a couple of concrete, narrow implementations.
package wireless

import (
	"context"
	"fmt"
	"os/exec"
)

// Link is the wireless bearer contract the supervisor drives: Up brings
// the interface online (or confirms it already is), Down idles it
// without tearing down configuration, and Terminate releases it
// entirely, e.g. before a reboot.
type Link interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Terminate(ctx context.Context) error
}

// NullLink is a Link that is always considered up; useful for wired
// deployments or test harnesses where the supervisor's state machine
// still applies but there is no bearer to actually manage.
type NullLink struct{}

func (NullLink) Up(context.Context) error        { return nil }
func (NullLink) Down(context.Context) error       { return nil }
func (NullLink) Terminate(context.Context) error { return nil }

// ScriptLink drives a wireless bearer through external up/down/terminate
// scripts, the way an embedded Linux deployment typically wraps modem
// control (ip link, pppd, or a vendor tool) behind a shell script rather
// than linking a modem SDK into the client binary.
type ScriptLink struct {
	UpScript        string
	DownScript      string
	TerminateScript string
}

// NewScriptLink returns a ScriptLink invoking the given scripts with no
// arguments; an empty script path is treated as a no-op for that verb.
func NewScriptLink(upScript, downScript, terminateScript string) *ScriptLink {
	return &ScriptLink{UpScript: upScript, DownScript: downScript, TerminateScript: terminateScript}
}

func (l *ScriptLink) Up(ctx context.Context) error        { return runScript(ctx, l.UpScript) }
func (l *ScriptLink) Down(ctx context.Context) error       { return runScript(ctx, l.DownScript) }
func (l *ScriptLink) Terminate(ctx context.Context) error { return runScript(ctx, l.TerminateScript) }

func runScript(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, path)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("wireless: run %s: %w: %s", path, err, out)
	}
	return nil
}
