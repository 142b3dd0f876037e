package origin

import (
	"encoding/json"
	"sync"
)

// Commands the Origin firmware understands, with their destinations.
// Destinations route the command inside the telescope: the mount controller,
// the task scheduler, the camera, or the system supervisor.
const (
	destMount          = "Mount"
	destCamera         = "Camera"
	destTaskController = "TaskController"
	destSystem         = "System"
	destEnvironment    = "Environment"

	cmdGotoRaDec            = "GotoRaDec"
	cmdSyncToRaDec          = "SyncToRaDec"
	cmdAbortAxisMovement    = "AbortAxisMovement"
	cmdPark                 = "Park"
	cmdUnpark               = "Unpark"
	cmdMoveAxis             = "MoveAxis"
	cmdStartTracking        = "StartTracking"
	cmdStopTracking         = "StopTracking"
	cmdRunInitialize        = "RunInitialize"
	cmdRunImaging           = "RunImaging"
	cmdCancelImaging        = "CancelImaging"
	cmdSetCaptureParameters = "SetCaptureParameters"
	cmdGetCaptureParameters = "GetCaptureParameters"
	cmdGetStatus            = "GetStatus"
	cmdNewImageReady        = "NewImageReady"
)

// commandSource is the Source tag stamped on every outbound command.
const commandSource = "AlpacaServer"

// firstSequenceID is where the per-connection sequence counter starts.
// The value itself is arbitrary; it only has to be unique per session.
const firstSequenceID = 2000

// buildCommand assembles the wire envelope for an Origin command. Every
// command carries Command, Destination, SequenceID, Source and Type plus
// any operation-specific fields merged in from params.
func buildCommand(command, destination string, sequenceID int, params map[string]any) map[string]any {
	envelope := map[string]any{
		"Command":     command,
		"Destination": destination,
		"SequenceID":  sequenceID,
		"Source":      commandSource,
		"Type":        "Command",
	}
	for k, v := range params {
		envelope[k] = v
	}
	return envelope
}

// encodeCommand renders the envelope as compact JSON.
func encodeCommand(envelope map[string]any) ([]byte, error) {
	return json.Marshal(envelope)
}

// maxPendingCommands bounds the correlation table. The device never answers
// some commands, so without eviction a long session would accumulate
// entries forever; the oldest are dropped once the table fills.
const maxPendingCommands = 256

// pendingTable maps sent sequence IDs to the command name that used them,
// so late responses and notifications can be correlated back to their
// origin for diagnostics. It is not authoritative for completion; typed
// events signal that.
type pendingTable struct {
	mu       sync.Mutex
	commands map[int]string
	order    []int
}

func newPendingTable() *pendingTable {
	return &pendingTable{commands: make(map[int]string)}
}

func (p *pendingTable) record(sequenceID int, command string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands[sequenceID] = command
	p.order = append(p.order, sequenceID)
	for len(p.order) > maxPendingCommands {
		delete(p.commands, p.order[0])
		p.order = p.order[1:]
	}
}

// resolve returns the command name a sequence ID belongs to, pruning the
// entry when found.
func (p *pendingTable) resolve(sequenceID int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	command, ok := p.commands[sequenceID]
	if ok {
		delete(p.commands, sequenceID)
	}
	return command, ok
}

func (p *pendingTable) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.commands)
}

// reset drops all entries. Called on disconnect.
func (p *pendingTable) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = make(map[int]string)
	p.order = nil
}
