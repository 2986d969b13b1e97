// Package service assembles the MCP server: it wires the credential core,
// the upstream API clients, and the tool handlers, and serves them over
// stdio to the assistant host.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	"github.com/vehiclegrid/dimo-mcp/internal/authflow"
	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
	"github.com/vehiclegrid/dimo-mcp/internal/services/mcp/domain"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "DIMO MCP Bridge"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

type mcpRegistrationModule struct {
	name     string
	register func(mcpRegistrationTarget) error
}

const (
	mcpIdentityToolsModuleName  = "identity-tools"
	mcpTelemetryToolsModuleName = "telemetry-tools"
	mcpCommandToolsModuleName   = "command-tools"
	mcpCredentialToolsModule    = "credential-tools"
	mcpAuthToolsModuleName      = "auth-tools"
)

// mcpRegistrationTarget abstracts tool registration so modules can be
// exercised against a fake in tests.
type mcpRegistrationTarget interface {
	AddTool(tool *mcp.Tool, handler any) error
}

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.IdentityQueryInput, domain.IdentityQueryResult](),
	newMCPToolRegistrar[domain.SearchVehiclesInput, domain.SearchVehiclesResult](),
	newMCPToolRegistrar[domain.DecodeVINInput, domain.DecodeVINResult](),
	newMCPToolRegistrar[domain.TelemetryQueryInput, domain.TelemetryQueryResult](),
	newMCPToolRegistrar[domain.VehicleVINInput, domain.VehicleVINResult](),
	newMCPToolRegistrar[domain.VehicleCommandInput, domain.VehicleCommandResult](),
	newMCPToolRegistrar[domain.CreateAttestationInput, domain.CreateAttestationResult](),
	newMCPToolRegistrar[domain.MintVehicleInput, domain.MintVehicleResult](),
	newMCPToolRegistrar[domain.InitiateLoginInput, domain.InitiateLoginResult](),
	newMCPToolRegistrar[domain.CheckSessionInput, domain.CheckSessionResult](),
	newMCPToolRegistrar[domain.IntrospectSchemaInput, domain.IntrospectSchemaResult](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

// Server hosts the MCP server together with the auth core it serves.
type Server struct {
	mcpServer   *mcp.Server
	settings    auth.Settings
	credentials *auth.CredentialManager
	sessions    *auth.SessionStore
}

// New creates a configured MCP server: upstream clients, credential core,
// ownership gate, and all tool registrations.
func New(settings auth.Settings) (*Server, error) {
	identity := dimo.NewIdentity(settings.IdentityURL, settings.GraphQLHeaders)
	telemetry := dimo.NewTelemetry(settings.TelemetryURL, settings.GraphQLHeaders)
	devices := dimo.NewDevices(settings.DevicesURL)
	attestation := dimo.NewAttestation(settings.AttestationURL)
	authAPI := dimo.NewAuthAPI(settings.AuthURL, settings.TokenExchangeURL)

	credentials := auth.NewCredentialManager(settings, authAPI)
	sessions := auth.NewSessionStore()
	tokens := auth.NewTokenCache(credentials, sessions, authAPI)
	gate := auth.NewGate(sessions, identity, settings.FleetMode)

	loginStarter := func(ctx context.Context) (string, <-chan authflow.Result, error) {
		listener, err := authflow.Start(ctx, settings.CallbackAddr, 0)
		if err != nil {
			return "", nil, err
		}
		return settings.LoginURL(listener.RedirectURI()), listener.Done(), nil
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{})

	for _, module := range newMCPRegistrationModules(
		settings, credentials, sessions, tokens, gate,
		identity, telemetry, devices, attestation, loginStarter,
	) {
		if err := module.register(mcpServerRegistrationAdapter{server: mcpServer}); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}

	return &Server{
		mcpServer:   mcpServer,
		settings:    settings,
		credentials: credentials,
		sessions:    sessions,
	}, nil
}

// newMCPRegistrationModules groups tool registration by concern so a
// failure names the module that broke.
func newMCPRegistrationModules(
	settings auth.Settings,
	credentials *auth.CredentialManager,
	sessions *auth.SessionStore,
	tokens *auth.TokenCache,
	gate *auth.Gate,
	identity *dimo.Identity,
	telemetry *dimo.Telemetry,
	devices *dimo.Devices,
	attestation *dimo.Attestation,
	loginStarter domain.LoginStarter,
) []mcpRegistrationModule {
	return []mcpRegistrationModule{
		{
			name: mcpIdentityToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				if err := registrar.AddTool(domain.IdentityQueryTool(), domain.IdentityQueryHandler(identity)); err != nil {
					return err
				}
				if err := registrar.AddTool(domain.SearchVehiclesTool(), domain.SearchVehiclesHandler(identity)); err != nil {
					return err
				}
				return registrar.AddTool(domain.DecodeVINTool(), domain.DecodeVINHandler(credentials, devices))
			},
		},
		{
			name: mcpTelemetryToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				if err := registrar.AddTool(domain.TelemetryQueryTool(), domain.TelemetryQueryHandler(gate, tokens, telemetry)); err != nil {
					return err
				}
				if err := registrar.AddTool(domain.VehicleVINTool(), domain.VehicleVINHandler(gate, tokens, telemetry)); err != nil {
					return err
				}
				return registrar.AddTool(domain.IntrospectSchemaTool(), domain.IntrospectSchemaHandler(gate, tokens, identity, telemetry))
			},
		},
		{
			name: mcpCommandToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				return registrar.AddTool(domain.VehicleCommandTool(), domain.VehicleCommandHandler(gate, tokens, domain.NewCommandDispatcher(devices)))
			},
		},
		{
			name: mcpCredentialToolsModule,
			register: func(registrar mcpRegistrationTarget) error {
				if err := registrar.AddTool(domain.CreateAttestationTool(), domain.CreateAttestationHandler(gate, tokens, attestation)); err != nil {
					return err
				}
				return registrar.AddTool(domain.MintVehicleTool(), domain.MintVehicleHandler(sessions, credentials, devices))
			},
		},
		{
			name: mcpAuthToolsModuleName,
			register: func(registrar mcpRegistrationTarget) error {
				if err := registrar.AddTool(domain.InitiateLoginTool(), domain.InitiateLoginHandler(loginStarter, sessions)); err != nil {
					return err
				}
				return registrar.AddTool(domain.CheckSessionTool(), domain.CheckSessionHandler(credentials, sessions))
			},
		},
	}
}

// Run loads the server from settings, acquires the service token when
// credentials allow, and serves MCP on stdio until the context ends.
//
// A failed service-token acquisition is logged and deliberately non-fatal:
// public identity tools keep working and vehicle-scoped tools surface the
// degraded state per call.
func Run(ctx context.Context, settings auth.Settings) error {
	server, err := New(settings)
	if err != nil {
		return err
	}

	if err := server.credentials.Acquire(ctx); err != nil {
		log.Printf("continuing without service token: %v", err)
	}

	return server.Serve(ctx)
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, &mcp.StdioTransport{})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
