package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/driftwave/chatcore/chat"
)

// NamespacedTool wraps a tool to report its namespaced name and a
// schema whose title carries that namespace, per spec.md §4.4's
// "server::tool_name" convention.
type NamespacedTool struct {
	Tool
	namespacedName string
}

func (n *NamespacedTool) GetSchema() *jsonschema.Schema {
	schema := n.Tool.GetSchema()
	if schema == nil {
		return nil
	}
	cp := *schema
	cp.Title = n.namespacedName
	return &cp
}

func (n *NamespacedTool) GetName() string { return n.namespacedName }

// ToolRegistry manages every tool available to the controller,
// keyed by its namespaced "server::tool" name. It satisfies
// chat.ToolManager (Execute) and chat.ToolSchemaSource (Schemas).
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	toolClients map[string]*MCPClient // namespaced name -> client
	serverTools map[string][]string   // serverSpec -> namespaced names
}

// DefaultNativeTools returns the builtin tools every registry is
// seeded with when the caller doesn't supply its own set.
func DefaultNativeTools() []Tool {
	return []Tool{&TextCaseTool{}, &WordCountTool{}}
}

// NewToolRegistry creates a registry seeded with builtin (non-namespaced)
// tools; MCP and shell tools are added later via Load*. A nil tools
// slice seeds DefaultNativeTools(); pass an empty, non-nil slice to
// start with none.
func NewToolRegistry(tools []Tool) *ToolRegistry {
	r := &ToolRegistry{
		tools:       make(map[string]Tool),
		toolClients: make(map[string]*MCPClient),
		serverTools: make(map[string][]string),
	}
	if tools == nil {
		tools = DefaultNativeTools()
	}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool under its own GetName(), unnamespaced. Used for
// builtin/native tools that have no owning server.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.GetName()
	if name == "" {
		return
	}
	log.Printf("registered tool: %s", name)
	r.tools[name] = tool
}

// Get retrieves a tool by its fully namespaced name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Execute satisfies chat.ToolManager, per spec.md §4.4: the
// controller calls it with the split "server::tool" name and
// already-parsed arguments; tool-level errors are reported as
// isError rather than as a Go error so the agentic loop can feed
// them back to the model as a Tool-authored message.
func (r *ToolRegistry) Execute(ctx context.Context, server, tool string, args map[string]any) (string, bool, error) {
	name := tool
	if server != "" {
		name = server + "::" + tool
	}

	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", true, fmt.Errorf("unknown tool %q", name)
	}

	result, err := t.Execute(ctx, args)
	if err != nil {
		return err.Error(), true, nil
	}
	return result, false, nil
}

// Schemas satisfies chat.ToolSchemaSource: one entry per registered
// tool, split into server/name at the "::" boundary.
func (r *ToolRegistry) Schemas() []chat.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]chat.ToolSchema, 0, len(r.tools))
	for name, tool := range r.tools {
		server, bare := "", name
		if idx := strings.Index(name, "::"); idx != -1 {
			server, bare = name[:idx], name[idx+2:]
		}

		schema := tool.GetSchema()
		var description string
		var params json.RawMessage
		if schema != nil {
			description = schema.Description
			if b, err := json.Marshal(schema); err == nil {
				params = b
			}
		}

		out = append(out, chat.ToolSchema{
			Server:      server,
			Name:        bare,
			Description: description,
			Parameters:  params,
		})
	}
	return out
}

// Remove removes a tool by namespaced name from the registry.
func (r *ToolRegistry) Remove(namespacedName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tool, exists := r.tools[namespacedName]
	if !exists {
		return
	}

	client := r.toolClients[namespacedName]
	delete(r.tools, namespacedName)
	delete(r.toolClients, namespacedName)
	log.Printf("removed tool: %s", namespacedName)

	if client == nil {
		return
	}
	source := tool.GetSource()
	if names := r.serverTools[source]; len(names) > 0 {
		var remaining []string
		for _, n := range names {
			if n != namespacedName {
				remaining = append(remaining, n)
			}
		}
		if len(remaining) > 0 {
			r.serverTools[source] = remaining
		} else {
			delete(r.serverTools, source)
		}
	}

	stillInUse := false
	for _, c := range r.toolClients {
		if c == client {
			stillInUse = true
			break
		}
	}
	if !stillInUse {
		log.Printf("closing MCP client (no remaining tools)")
		client.Close()
	}
}

// All returns every registered tool.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// GetSchemas returns the raw jsonschema.Schema for every registered
// tool, namespaced-title included. Kept alongside Schemas() (the
// chat.ToolSchema view) for callers that want the full schema object,
// e.g. a CLI's --list-tools output.
func (r *ToolRegistry) GetSchemas() []*jsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]*jsonschema.Schema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, t.GetSchema())
	}
	return schemas
}

// LoadMCPServer connects to an MCP server and registers its tools
// under "<namespace>::<toolname>".
func (r *ToolRegistry) LoadMCPServer(serverSpec string) error {
	client, err := NewMCPClient(serverSpec)
	if err != nil {
		return err
	}

	namespace := extractNamespace(serverSpec)
	mcpTools, err := client.ListTools()
	if err != nil {
		client.Close()
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, t := range mcpTools {
		bare := t.GetName()
		if bare == "" {
			continue
		}
		namespaced := namespace + "::" + bare
		r.tools[namespaced] = &NamespacedTool{Tool: t, namespacedName: namespaced}
		r.toolClients[namespaced] = client
		names = append(names, namespaced)
		log.Printf("registered MCP tool: %s", namespaced)
	}
	r.serverTools[serverSpec] = names
	return nil
}

// UnloadMCPServer removes every tool from a server and closes it.
func (r *ToolRegistry) UnloadMCPServer(serverSpec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names, exists := r.serverTools[serverSpec]
	if !exists {
		return fmt.Errorf("MCP server not loaded: %s", GetMCPDisplayName(serverSpec))
	}

	var client *MCPClient
	if len(names) > 0 {
		client = r.toolClients[names[0]]
	}
	for _, name := range names {
		delete(r.tools, name)
		delete(r.toolClients, name)
		log.Printf("removed MCP tool: %s", name)
	}
	if client != nil {
		client.Close()
		log.Printf("closed MCP server: %s", GetMCPDisplayName(serverSpec))
	}
	delete(r.serverTools, serverSpec)
	return nil
}

// LoadShellTool loads a single shell tool from a file path under
// "<namespace>::<toolname>".
func (r *ToolRegistry) LoadShellTool(path string) error {
	shellTool, err := NewShellTool(path)
	if err != nil {
		return fmt.Errorf("failed to load shell tool %s: %w", path, err)
	}
	bare := shellTool.GetName()
	if bare == "" {
		return fmt.Errorf("shell tool %s has no name in schema", path)
	}

	namespaced := extractNamespace(path) + "::" + bare

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[namespaced] = &NamespacedTool{Tool: shellTool, namespacedName: namespaced}
	log.Printf("registered shell tool: %s", namespaced)
	return nil
}

// LoadToolAuto attempts to load a tool, auto-detecting shell vs. MCP.
func (r *ToolRegistry) LoadToolAuto(pathOrServer string) (isShell bool, err error) {
	if shellErr := r.LoadShellTool(pathOrServer); shellErr == nil {
		return true, nil
	} else if mcpErr := r.LoadMCPServer(pathOrServer); mcpErr == nil {
		return false, nil
	} else {
		return false, fmt.Errorf("failed to load as shell tool (%v) or MCP server (%v)", shellErr, mcpErr)
	}
}

// LoadMCPServers batch loads multiple servers.
func (r *ToolRegistry) LoadMCPServers(serverSpecs []string) error {
	for _, spec := range serverSpecs {
		if err := r.LoadMCPServer(spec); err != nil {
			return fmt.Errorf("failed to load MCP server %s: %w", spec, err)
		}
	}
	return nil
}

// GetActiveToolLoaders returns loader information for every tool, one
// entry per tool, to allow selective reloading.
func (r *ToolRegistry) GetActiveToolLoaders() []ToolLoaderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var loaders []ToolLoaderInfo
	for name, tool := range r.tools {
		loaders = append(loaders, ToolLoaderInfo{Name: name, Type: tool.GetType(), Source: tool.GetSource()})
	}
	return loaders
}

// LoadMCPServerWithFilter connects to an MCP server and only
// registers the tools named in allowedTools (namespaced or bare).
func (r *ToolRegistry) LoadMCPServerWithFilter(serverSpec string, allowedTools []string) error {
	client, err := NewMCPClient(serverSpec)
	if err != nil {
		return err
	}

	namespace := extractNamespace(serverSpec)
	mcpTools, err := client.ListTools()
	if err != nil {
		client.Close()
		return err
	}

	allowed := make(map[string]bool)
	for _, name := range allowedTools {
		if idx := strings.Index(name, "::"); idx != -1 {
			allowed[name[idx+2:]] = true
		} else {
			allowed[name] = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, t := range mcpTools {
		bare := t.GetName()
		if bare == "" || !allowed[bare] {
			continue
		}
		namespaced := namespace + "::" + bare
		r.tools[namespaced] = &NamespacedTool{Tool: t, namespacedName: namespaced}
		r.toolClients[namespaced] = client
		names = append(names, namespaced)
		log.Printf("registered MCP tool: %s", namespaced)
	}
	r.serverTools[serverSpec] = names
	return nil
}

// GetLoadedMCPServers returns the list of loaded server specs.
func (r *ToolRegistry) GetLoadedMCPServers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	servers := make([]string, 0, len(r.serverTools))
	for spec := range r.serverTools {
		servers = append(servers, spec)
	}
	return servers
}

// Close cleans up every MCP client connection held by the registry.
func (r *ToolRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	closed := make(map[*MCPClient]bool)
	for _, client := range r.toolClients {
		if !closed[client] {
			client.Close()
			closed[client] = true
		}
	}
	r.tools = make(map[string]Tool)
	r.toolClients = make(map[string]*MCPClient)
	r.serverTools = make(map[string][]string)
	return nil
}

// extractNamespace derives a server namespace from a file path, e.g.
// "/path/to/filesystem.json" -> "filesystem".
func extractNamespace(filePath string) string {
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
