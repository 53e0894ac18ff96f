// Package mcp provides a Model Context Protocol server exposing the
// Dirigo account lifecycle operations as tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// Server represents the Dirigo MCP server
type Server struct {
	core   interfaces.IdentityCore
	config *config.CoreConfig
	logger interfaces.Logger
	server *server.MCPServer
}

// ServerInfo contains metadata about the MCP server
type ServerInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// NewServer creates a new Dirigo MCP server backed by an identity core
func NewServer(identityCore interfaces.IdentityCore, cfg *config.CoreConfig, logger interfaces.Logger) *Server {
	s := &Server{
		core:   identityCore,
		config: cfg,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"Dirigo MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.server = mcpServer
	s.setupTools()

	return s
}

// Start starts the MCP server with stdio transport
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting MCP server", map[string]interface{}{
		"transport": "stdio",
		"version":   "1.0.0",
	})

	return server.ServeStdio(s.server)
}

// Stop gracefully stops the MCP server
func (s *Server) Stop() error {
	s.logger.Info("stopping MCP server")
	return nil
}

// GetServerInfo returns metadata about the MCP server
func (s *Server) GetServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "Dirigo MCP Server",
		Version:     "1.0.0",
		Description: "MCP server exposing POSIX account provisioning and lifecycle tools",
	}
}

// setupTools configures all available MCP tools
func (s *Server) setupTools() {
	activateTool := mcp.NewTool("activate_account",
		mcp.WithDescription("Provision POSIX attributes for a directory user"),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("Account name to activate"),
		),
		mcp.WithNumber("uid_number",
			mcp.Description("Explicit UID number (1000-65534); allocated automatically when omitted"),
		),
		mcp.WithString("group_mode",
			mcp.Description("Primary group mode: select_existing or create_personal"),
		),
		mcp.WithNumber("gid_number",
			mcp.Description("Explicit GID number, required for select_existing"),
		),
		mcp.WithString("login_shell",
			mcp.Description("Login shell, defaults from server configuration"),
		),
		mcp.WithString("gecos",
			mcp.Description("GECOS display name"),
		),
	)
	s.server.AddTool(activateTool, s.handleActivateAccount)

	getAccountTool := mcp.NewTool("get_account",
		mcp.WithDescription("Retrieve an account's POSIX attributes"),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("Account name to look up"),
		),
	)
	s.server.AddTool(getAccountTool, s.handleGetAccount)

	statusTool := mcp.NewTool("account_status",
		mcp.WithDescription("Derive an account's operational status from its shadow aging fields"),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("Account name to inspect"),
		),
	)
	s.server.AddTool(statusTool, s.handleAccountStatus)

	updateTool := mcp.NewTool("update_account",
		mcp.WithDescription("Apply a sparse attribute patch to an active account. The UID number is immutable."),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("Account name to update"),
		),
		mcp.WithString("login_shell",
			mcp.Description("New login shell"),
		),
		mcp.WithString("home_directory",
			mcp.Description("New home directory"),
		),
		mcp.WithString("gecos",
			mcp.Description("New GECOS display name"),
		),
		mcp.WithNumber("gid_number",
			mcp.Description("New primary GID; the group must exist"),
		),
	)
	s.server.AddTool(updateTool, s.handleUpdateAccount)

	deactivateTool := mcp.NewTool("deactivate_account",
		mcp.WithDescription("Strip POSIX attributes from an account"),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("Account name to deactivate"),
		),
		mcp.WithBoolean("delete_personal_group",
			mcp.Description("Also delete the personal group when empty (default: true)"),
		),
	)
	s.server.AddTool(deactivateTool, s.handleDeactivateAccount)

	createGroupTool := mcp.NewTool("create_group",
		mcp.WithDescription("Create a standalone POSIX group"),
		mcp.WithString("cn",
			mcp.Required(),
			mcp.Description("Group name"),
		),
		mcp.WithNumber("gid_number",
			mcp.Description("Explicit GID number; allocated automatically when omitted"),
		),
		mcp.WithString("description",
			mcp.Description("Group description"),
		),
	)
	s.server.AddTool(createGroupTool, s.handleCreateGroup)

	getGroupTool := mcp.NewTool("get_group",
		mcp.WithDescription("Retrieve a POSIX group by name"),
		mcp.WithString("cn",
			mcp.Required(),
			mcp.Description("Group name to look up"),
		),
	)
	s.server.AddTool(getGroupTool, s.handleGetGroup)

	deleteGroupTool := mcp.NewTool("delete_group",
		mcp.WithDescription("Delete a POSIX group if it has no members"),
		mcp.WithString("cn",
			mcp.Required(),
			mcp.Description("Group name to delete"),
		),
	)
	s.server.AddTool(deleteGroupTool, s.handleDeleteGroup)

	addMemberTool := mcp.NewTool("add_group_member",
		mcp.WithDescription("Add a user to a POSIX group"),
		mcp.WithString("cn",
			mcp.Required(),
			mcp.Description("Group name"),
		),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("Account name to add"),
		),
	)
	s.server.AddTool(addMemberTool, s.handleAddGroupMember)

	removeMemberTool := mcp.NewTool("remove_group_member",
		mcp.WithDescription("Remove a user from a POSIX group"),
		mcp.WithString("cn",
			mcp.Required(),
			mcp.Description("Group name"),
		),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("Account name to remove"),
		),
	)
	s.server.AddTool(removeMemberTool, s.handleRemoveGroupMember)

	setUserTrustTool := mcp.NewTool("set_user_trust",
		mcp.WithDescription("Set the host trust scope on a user"),
		mcp.WithString("uid",
			mcp.Required(),
			mcp.Description("Account name"),
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Trust mode: none, fullaccess or byhost"),
		),
		mcp.WithArray("hosts",
			mcp.Description("Host names, required for byhost mode"),
		),
	)
	s.server.AddTool(setUserTrustTool, s.handleSetUserTrust)

	setGroupTrustTool := mcp.NewTool("set_group_trust",
		mcp.WithDescription("Set the host trust scope on a group"),
		mcp.WithString("cn",
			mcp.Required(),
			mcp.Description("Group name"),
		),
		mcp.WithString("mode",
			mcp.Required(),
			mcp.Description("Trust mode: none, fullaccess or byhost"),
		),
		mcp.WithArray("hosts",
			mcp.Description("Host names, required for byhost mode"),
		),
	)
	s.server.AddTool(setGroupTrustTool, s.handleSetGroupTrust)

	healthTool := mcp.NewTool("health_check",
		mcp.WithDescription("Check the health status of the identity console"),
	)
	s.server.AddTool(healthTool, s.handleHealthCheck)
}

// Tool handlers

func (s *Server) handleActivateAccount(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arguments := request.GetArguments()

	req := &interfaces.ActivationRequest{
		UID: stringArg(arguments, "uid"),
	}
	if v, ok := intArg(arguments, "uid_number"); ok {
		req.UIDNumber = &v
	}
	if mode := stringArg(arguments, "group_mode"); mode != "" {
		req.GroupMode = types.PrimaryGroupMode(mode)
	}
	if v, ok := intArg(arguments, "gid_number"); ok {
		req.GIDNumber = &v
	}
	req.LoginShell = stringArg(arguments, "login_shell")
	req.GECOS = stringArg(arguments, "gecos")

	account, err := s.core.ActivateAccount(ctx, req)
	if err != nil {
		s.logger.Error("failed to activate account", err)
		return errorResult("Activation failed: %s", err.Error()), nil
	}

	return jsonResult(fmt.Sprintf("Account '%s' activated", account.UID), account), nil
}

func (s *Server) handleGetAccount(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := stringArg(request.GetArguments(), "uid")

	account, err := s.core.GetAccount(ctx, uid)
	if err != nil {
		return errorResult("Lookup failed: %s", err.Error()), nil
	}
	if account == nil {
		return textResult(fmt.Sprintf("Account '%s' has no POSIX attributes", uid)), nil
	}

	return jsonResult(fmt.Sprintf("Account '%s'", uid), account), nil
}

func (s *Server) handleAccountStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := stringArg(request.GetArguments(), "uid")

	status, err := s.core.AccountStatus(ctx, uid)
	if err != nil {
		return errorResult("Status lookup failed: %s", err.Error()), nil
	}

	return textResult(fmt.Sprintf("Account '%s' status: %s", uid, status)), nil
}

func (s *Server) handleUpdateAccount(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arguments := request.GetArguments()
	uid := stringArg(arguments, "uid")

	patch := &interfaces.AccountPatch{}
	if shell := stringArg(arguments, "login_shell"); shell != "" {
		patch.LoginShell = &shell
	}
	if home := stringArg(arguments, "home_directory"); home != "" {
		patch.HomeDirectory = &home
	}
	if gecos := stringArg(arguments, "gecos"); gecos != "" {
		patch.GECOS = &gecos
	}
	if v, ok := intArg(arguments, "gid_number"); ok {
		patch.GIDNumber = &v
	}

	account, err := s.core.UpdateAccount(ctx, uid, patch)
	if err != nil {
		return errorResult("Update failed: %s", err.Error()), nil
	}

	return jsonResult(fmt.Sprintf("Account '%s' updated", uid), account), nil
}

func (s *Server) handleDeactivateAccount(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arguments := request.GetArguments()
	uid := stringArg(arguments, "uid")

	deleteGroup := true
	if v, ok := arguments["delete_personal_group"].(bool); ok {
		deleteGroup = v
	}

	if err := s.core.DeactivateAccount(ctx, uid, deleteGroup); err != nil {
		return errorResult("Deactivation failed: %s", err.Error()), nil
	}

	return textResult(fmt.Sprintf("Account '%s' deactivated", uid)), nil
}

func (s *Server) handleCreateGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arguments := request.GetArguments()

	req := &interfaces.GroupCreateRequest{
		CN:          stringArg(arguments, "cn"),
		Description: stringArg(arguments, "description"),
	}
	if v, ok := intArg(arguments, "gid_number"); ok {
		req.GIDNumber = &v
	}

	group, err := s.core.CreateGroup(ctx, req)
	if err != nil {
		return errorResult("Group creation failed: %s", err.Error()), nil
	}

	return jsonResult(fmt.Sprintf("Group '%s' created", group.CN), group), nil
}

func (s *Server) handleGetGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cn := stringArg(request.GetArguments(), "cn")

	group, err := s.core.GetGroup(ctx, cn)
	if err != nil {
		return errorResult("Lookup failed: %s", err.Error()), nil
	}
	if group == nil {
		return textResult(fmt.Sprintf("Group '%s' not found", cn)), nil
	}

	return jsonResult(fmt.Sprintf("Group '%s'", cn), group), nil
}

func (s *Server) handleDeleteGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cn := stringArg(request.GetArguments(), "cn")

	deleted, err := s.core.DeleteGroup(ctx, cn)
	if err != nil {
		return errorResult("Deletion failed: %s", err.Error()), nil
	}
	if !deleted {
		return textResult(fmt.Sprintf("Group '%s' was not deleted: missing or still has members", cn)), nil
	}

	return textResult(fmt.Sprintf("Group '%s' deleted", cn)), nil
}

func (s *Server) handleAddGroupMember(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arguments := request.GetArguments()
	cn := stringArg(arguments, "cn")
	uid := stringArg(arguments, "uid")

	if err := s.core.AddGroupMember(ctx, cn, uid); err != nil {
		return errorResult("Failed to add member: %s", err.Error()), nil
	}

	return textResult(fmt.Sprintf("Added '%s' to group '%s'", uid, cn)), nil
}

func (s *Server) handleRemoveGroupMember(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arguments := request.GetArguments()
	cn := stringArg(arguments, "cn")
	uid := stringArg(arguments, "uid")

	if err := s.core.RemoveGroupMember(ctx, cn, uid); err != nil {
		return errorResult("Failed to remove member: %s", err.Error()), nil
	}

	return textResult(fmt.Sprintf("Removed '%s' from group '%s'", uid, cn)), nil
}

func (s *Server) handleSetUserTrust(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arguments := request.GetArguments()
	uid := stringArg(arguments, "uid")
	mode := types.TrustMode(stringArg(arguments, "mode"))
	hosts := stringSliceArg(arguments, "hosts")

	if err := s.core.SetUserTrust(ctx, uid, mode, hosts); err != nil {
		return errorResult("Failed to set trust: %s", err.Error()), nil
	}

	return textResult(fmt.Sprintf("Trust scope on '%s' set to %s", uid, mode)), nil
}

func (s *Server) handleSetGroupTrust(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	arguments := request.GetArguments()
	cn := stringArg(arguments, "cn")
	mode := types.TrustMode(stringArg(arguments, "mode"))
	hosts := stringSliceArg(arguments, "hosts")

	if err := s.core.SetGroupTrust(ctx, cn, mode, hosts); err != nil {
		return errorResult("Failed to set trust: %s", err.Error()), nil
	}

	return textResult(fmt.Sprintf("Trust scope on group '%s' set to %s", cn, mode)), nil
}

func (s *Server) handleHealthCheck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	health, err := s.core.HealthCheck(ctx)
	if err != nil {
		return errorResult("Health check failed: %s", err.Error()), nil
	}

	return jsonResult("Health status", health), nil
}

// Argument helpers

func stringArg(arguments map[string]interface{}, key string) string {
	if v, ok := arguments[key].(string); ok {
		return v
	}
	return ""
}

func intArg(arguments map[string]interface{}, key string) (int, bool) {
	if v, ok := arguments[key].(float64); ok {
		return int(v), true
	}
	return 0, false
}

func stringSliceArg(arguments map[string]interface{}, key string) []string {
	raw, ok := arguments[key].([]interface{})
	if !ok {
		return nil
	}
	hosts := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			hosts = append(hosts, s)
		}
	}
	return hosts
}

// Result helpers

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: fmt.Sprintf(format, args...)},
		},
	}
}

func jsonResult(header string, payload interface{}) *mcp.CallToolResult {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errorResult("Failed to encode result: %s", err.Error())
	}
	return textResult(fmt.Sprintf("%s:\n%s", header, string(encoded)))
}
