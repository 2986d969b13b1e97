package domain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/timeouts"
)

// commandConcurrency bounds the fan-out of a batch command call.
const commandConcurrency = 4

// CommandDispatcher issues a command to one vehicle.
type CommandDispatcher interface {
	IssueCommand(ctx context.Context, vehicleToken string, vehicleID int64, command dimo.Command) (jsonPayload []byte, err error)
}

// devicesDispatcher adapts the devices client to the dispatcher contract.
type devicesDispatcher struct {
	devices *dimo.Devices
}

func (d devicesDispatcher) IssueCommand(ctx context.Context, vehicleToken string, vehicleID int64, command dimo.Command) ([]byte, error) {
	return d.devices.IssueCommand(ctx, vehicleToken, vehicleID, command)
}

// NewCommandDispatcher wraps the devices REST client.
func NewCommandDispatcher(devices *dimo.Devices) CommandDispatcher {
	return devicesDispatcher{devices: devices}
}

// VehicleCommandInput represents the MCP tool input for vehicle commands.
type VehicleCommandInput struct {
	Command         string  `json:"command" jsonschema:"command to issue: lock_doors, unlock_doors, start_charge, or stop_charge (required)"`
	VehicleTokenIDs []int64 `json:"vehicle_token_ids" jsonschema:"vehicle token ids to command; each vehicle is processed independently (required)"`
}

// CommandOutcome is the per-vehicle success entry of a batch command.
type CommandOutcome struct {
	VehicleTokenID int64  `json:"vehicle_token_id" jsonschema:"vehicle token id"`
	Payload        string `json:"payload" jsonschema:"pretty-printed upstream response, unmodified"`
}

// CommandFailure is the per-vehicle failure entry of a batch command.
type CommandFailure struct {
	VehicleTokenID int64  `json:"vehicle_token_id" jsonschema:"vehicle token id"`
	Reason         string `json:"reason" jsonschema:"denial or failure reason"`
}

// CommandSummary counts batch outcomes.
type CommandSummary struct {
	Total     int `json:"total" jsonschema:"number of vehicles in the batch"`
	Succeeded int `json:"succeeded" jsonschema:"number of vehicles that completed"`
	Failed    int `json:"failed" jsonschema:"number of vehicles that failed"`
}

// VehicleCommandResult represents the MCP tool output for vehicle commands.
type VehicleCommandResult struct {
	Successful []CommandOutcome `json:"successful" jsonschema:"vehicles that completed the command"`
	Failed     []CommandFailure `json:"failed" jsonschema:"vehicles that were denied or failed"`
	Summary    CommandSummary   `json:"summary" jsonschema:"batch outcome counts"`
}

// VehicleCommandTool defines the MCP tool schema for vehicle commands.
func VehicleCommandTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vehicle_command",
		Description: "Issues a command (lock/unlock doors, start/stop charge) to one or more vehicles. Requires login and ownership (or fleet mode) per vehicle; one vehicle's failure does not abort the rest.",
	}
}

// VehicleCommandHandler executes a batch vehicle command. Each vehicle runs
// the full gate, token exchange, and dispatch sequence independently, and
// the result separates successes from failures.
func VehicleCommandHandler(gate Authorizer, tokens VehicleTokenSource, dispatcher CommandDispatcher) mcp.ToolHandlerFor[VehicleCommandInput, VehicleCommandResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input VehicleCommandInput) (*mcp.CallToolResult, VehicleCommandResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, VehicleCommandResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		command, err := dimo.ParseCommand(input.Command)
		if err != nil {
			return nil, VehicleCommandResult{}, err
		}
		if len(input.VehicleTokenIDs) == 0 {
			return nil, VehicleCommandResult{}, fmt.Errorf("at least one vehicle_token_id is required")
		}

		result := VehicleCommandResult{
			Successful: []CommandOutcome{},
			Failed:     []CommandFailure{},
		}
		var mu sync.Mutex

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(commandConcurrency)
		for _, vehicleID := range input.VehicleTokenIDs {
			group.Go(func() error {
				outcome, failure := commandOne(groupCtx, gate, tokens, dispatcher, vehicleID, command)
				mu.Lock()
				defer mu.Unlock()
				if failure != nil {
					result.Failed = append(result.Failed, *failure)
					return nil
				}
				result.Successful = append(result.Successful, *outcome)
				return nil
			})
		}
		// Workers report per-vehicle outcomes instead of failing the group,
		// so Wait only surfaces context cancellation.
		if err := group.Wait(); err != nil {
			return nil, VehicleCommandResult{}, err
		}

		sort.Slice(result.Successful, func(i, j int) bool {
			return result.Successful[i].VehicleTokenID < result.Successful[j].VehicleTokenID
		})
		sort.Slice(result.Failed, func(i, j int) bool {
			return result.Failed[i].VehicleTokenID < result.Failed[j].VehicleTokenID
		})
		result.Summary = CommandSummary{
			Total:     len(input.VehicleTokenIDs),
			Succeeded: len(result.Successful),
			Failed:    len(result.Failed),
		}
		return CallToolResultWithMetadata(meta), result, nil
	}
}

// commandOne runs the gate, token exchange, and command dispatch for a
// single vehicle.
func commandOne(ctx context.Context, gate Authorizer, tokens VehicleTokenSource, dispatcher CommandDispatcher, vehicleID int64, command dimo.Command) (*CommandOutcome, *CommandFailure) {
	callCtx, cancel := context.WithTimeout(ctx, timeouts.UpstreamCall)
	defer cancel()

	token, err := authorizeVehicle(callCtx, gate, tokens, vehicleID, auth.NewPrivilegeSet(auth.PrivilegeCommands))
	if err != nil {
		return nil, &CommandFailure{VehicleTokenID: vehicleID, Reason: err.Error()}
	}

	payload, err := dispatcher.IssueCommand(callCtx, token.Token, vehicleID, command)
	if err != nil {
		return nil, &CommandFailure{VehicleTokenID: vehicleID, Reason: err.Error()}
	}
	return &CommandOutcome{VehicleTokenID: vehicleID, Payload: prettyJSON(payload)}, nil
}
