package directory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/avast/retry-go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	dirigoconfig "github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/errors"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/types"
)

// Neo4jDirectory implements DirectoryService on a Neo4j graph.
// Accounts and groups are nodes; primary-group linkage is kept as the
// gid_number property, group membership as a member_uids list property.
type Neo4jDirectory struct {
	*BaseDirectory
	driver neo4j.DriverWithContext
}

// NewNeo4jDirectory creates a Neo4j-backed directory
func NewNeo4jDirectory(cfg *dirigoconfig.DirectoryConfig, logger interfaces.Logger, metrics interfaces.Metrics) (*Neo4jDirectory, error) {
	if cfg == nil {
		cfg = dirigoconfig.NewDirectoryConfig()
		cfg.Backend = types.BackendNeo4j
	}

	nd := &Neo4jDirectory{
		BaseDirectory: NewBaseDirectory(cfg, logger, metrics),
	}

	if err := nd.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	return nd, nil
}

func (nd *Neo4jDirectory) connect() error {
	start := time.Now()
	defer func() {
		nd.stats.mu.Lock()
		nd.stats.connectionTime = time.Since(start)
		nd.stats.mu.Unlock()
	}()

	auth := neo4j.BasicAuth(nd.config.Username, nd.config.Password, "")
	configFunc := func(conf *config.Config) {
		conf.ConnectionAcquisitionTimeout = nd.config.Timeout
		conf.SocketConnectTimeout = nd.config.Timeout
		conf.SocketKeepalive = true
	}

	driver, err := neo4j.NewDriverWithContext(nd.config.URI, auth, configFunc)
	if err != nil {
		nd.UpdateHealth("unhealthy", err)
		return fmt.Errorf("failed to create Neo4j driver: %w", err)
	}
	nd.driver = driver

	ctx, cancel := context.WithTimeout(context.Background(), nd.config.Timeout)
	defer cancel()

	if err := nd.driver.VerifyConnectivity(ctx); err != nil {
		nd.UpdateHealth("unhealthy", err)
		return fmt.Errorf("failed to verify Neo4j connectivity: %w", err)
	}

	nd.UpdateHealth("healthy", nil)
	nd.logger.Info("connected to Neo4j directory", map[string]interface{}{
		"uri":      nd.config.URI,
		"database": nd.config.Database,
		"duration": time.Since(start).String(),
	})
	return nil
}

// run executes a Cypher query with the configured retry policy
func (nd *Neo4jDirectory) run(ctx context.Context, accessMode neo4j.AccessMode, query string, params map[string]interface{}) ([]map[string]interface{}, error) {
	if nd.IsClosed() {
		return nil, errors.NewDirectoryError("directory backend is closed")
	}

	start := time.Now()
	var success bool
	defer func() {
		nd.RecordQuery(success, time.Since(start))
	}()

	var results []map[string]interface{}

	err := retry.Do(
		func() error {
			session := nd.driver.NewSession(ctx, neo4j.SessionConfig{
				AccessMode:   accessMode,
				DatabaseName: nd.config.Database,
			})
			defer session.Close(ctx)

			result, err := session.Run(ctx, query, params)
			if err != nil {
				return err
			}

			results = nil
			for result.Next(ctx) {
				record := result.Record()
				resultMap := make(map[string]interface{})
				for _, key := range record.Keys {
					if value, ok := record.Get(key); ok {
						resultMap[key] = value
					}
				}
				results = append(results, resultMap)
			}
			if err := result.Err(); err != nil {
				return err
			}

			success = true
			return nil
		},
		retry.Attempts(uint(nd.config.RetryAttempts)),
		retry.Delay(nd.config.RetryDelay),
		retry.Context(ctx),
	)

	if err != nil {
		nd.logger.Error("query failed", err, map[string]interface{}{
			"query": query,
		})
		return nil, errors.NewQueryFailedError(query, err)
	}
	return results, nil
}

// SuggestNextUID returns the lowest free uidNumber >= 1000
func (nd *Neo4jDirectory) SuggestNextUID(ctx context.Context) (int, error) {
	results, err := nd.run(ctx, neo4j.AccessModeRead,
		"MATCH (a:PosixAccount) WHERE a.uid_number >= $min RETURN a.uid_number AS id",
		map[string]interface{}{"min": MinID})
	if err != nil {
		return 0, err
	}
	return nextFreeID(collectIDs(results)), nil
}

// SuggestNextGID returns the lowest free gidNumber >= 1000
func (nd *Neo4jDirectory) SuggestNextGID(ctx context.Context) (int, error) {
	results, err := nd.run(ctx, neo4j.AccessModeRead,
		"MATCH (g:PosixGroup) WHERE g.gid_number >= $min RETURN g.gid_number AS id",
		map[string]interface{}{"min": MinID})
	if err != nil {
		return 0, err
	}
	return nextFreeID(collectIDs(results)), nil
}

// UIDNumberInUse reports whether a uidNumber is already assigned
func (nd *Neo4jDirectory) UIDNumberInUse(ctx context.Context, uidNumber int) (bool, error) {
	results, err := nd.run(ctx, neo4j.AccessModeRead,
		"MATCH (a:PosixAccount {uid_number: $id}) RETURN count(a) AS c",
		map[string]interface{}{"id": uidNumber})
	if err != nil {
		return false, err
	}
	return countResult(results) > 0, nil
}

// GIDNumberInUse reports whether a gidNumber is already assigned
func (nd *Neo4jDirectory) GIDNumberInUse(ctx context.Context, gidNumber int) (bool, error) {
	results, err := nd.run(ctx, neo4j.AccessModeRead,
		"MATCH (g:PosixGroup {gid_number: $id}) RETURN count(g) AS c",
		map[string]interface{}{"id": gidNumber})
	if err != nil {
		return false, err
	}
	return countResult(results) > 0, nil
}

// GroupExists reports whether a group with the given gidNumber exists
func (nd *Neo4jDirectory) GroupExists(ctx context.Context, gidNumber int) (bool, error) {
	return nd.GIDNumberInUse(ctx, gidNumber)
}

// GroupByCN retrieves a group by name, nil if not found
func (nd *Neo4jDirectory) GroupByCN(ctx context.Context, cn string) (*types.PosixGroup, error) {
	results, err := nd.run(ctx, neo4j.AccessModeRead,
		"MATCH (g:PosixGroup {cn: $cn}) RETURN g",
		map[string]interface{}{"cn": cn})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return nodeToGroup(results[0]["g"])
}

// CreateGroup creates a new POSIX group
func (nd *Neo4jDirectory) CreateGroup(ctx context.Context, cn string, gidNumber int, description string) (*types.PosixGroup, error) {
	results, err := nd.run(ctx, neo4j.AccessModeWrite, `
		OPTIONAL MATCH (existing:PosixGroup) WHERE existing.cn = $cn OR existing.gid_number = $gid
		WITH count(existing) AS conflicts
		WHERE conflicts = 0
		CREATE (g:PosixGroup {cn: $cn, gid_number: $gid, description: $description, member_uids: [], created_at: datetime()})
		RETURN g
	`, map[string]interface{}{
		"cn":          cn,
		"gid":         gidNumber,
		"description": description,
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.NewAlreadyExistsError("group")
	}

	nd.logger.Info("group created", map[string]interface{}{
		"cn":  cn,
		"gid": gidNumber,
	})
	return nodeToGroup(results[0]["g"])
}

// DeleteGroupIfEmpty deletes a group only when it has no members, returning
// whether a deletion happened
func (nd *Neo4jDirectory) DeleteGroupIfEmpty(ctx context.Context, cn string) (bool, error) {
	results, err := nd.run(ctx, neo4j.AccessModeWrite, `
		MATCH (g:PosixGroup {cn: $cn})
		WHERE size(coalesce(g.member_uids, [])) = 0
		DELETE g
		RETURN count(g) AS c
	`, map[string]interface{}{"cn": cn})
	if err != nil {
		return false, err
	}
	return countResult(results) > 0, nil
}

// AddGroupMember adds a username to a group's member list
func (nd *Neo4jDirectory) AddGroupMember(ctx context.Context, cn, uid string) error {
	results, err := nd.run(ctx, neo4j.AccessModeWrite, `
		MATCH (g:PosixGroup {cn: $cn})
		SET g.member_uids = CASE
			WHEN $uid IN coalesce(g.member_uids, []) THEN g.member_uids
			ELSE coalesce(g.member_uids, []) + $uid
		END
		RETURN count(g) AS c
	`, map[string]interface{}{"cn": cn, "uid": uid})
	if err != nil {
		return err
	}
	if countResult(results) == 0 {
		return errors.NewNotFoundError("group " + cn)
	}
	return nil
}

// RemoveGroupMember removes a username from a group's member list
func (nd *Neo4jDirectory) RemoveGroupMember(ctx context.Context, cn, uid string) error {
	results, err := nd.run(ctx, neo4j.AccessModeWrite, `
		MATCH (g:PosixGroup {cn: $cn})
		SET g.member_uids = [m IN coalesce(g.member_uids, []) WHERE m <> $uid]
		RETURN count(g) AS c
	`, map[string]interface{}{"cn": cn, "uid": uid})
	if err != nil {
		return err
	}
	if countResult(results) == 0 {
		return errors.NewNotFoundError("group " + cn)
	}
	return nil
}

// SetGroupTrust stores a trust scope on a group
func (nd *Neo4jDirectory) SetGroupTrust(ctx context.Context, cn string, trust *types.TrustScope) error {
	mode, hosts := trustToProps(trust)
	results, err := nd.run(ctx, neo4j.AccessModeWrite, `
		MATCH (g:PosixGroup {cn: $cn})
		SET g.trust_mode = $mode, g.trust_hosts = $hosts
		RETURN count(g) AS c
	`, map[string]interface{}{"cn": cn, "mode": mode, "hosts": hosts})
	if err != nil {
		return err
	}
	if countResult(results) == 0 {
		return errors.NewNotFoundError("group " + cn)
	}
	return nil
}

// GetPosixAccount retrieves the POSIX attribute set for a user, nil if the
// user has no POSIX attributes
func (nd *Neo4jDirectory) GetPosixAccount(ctx context.Context, uid string) (*types.PosixAccount, error) {
	results, err := nd.run(ctx, neo4j.AccessModeRead,
		"MATCH (a:PosixAccount {uid: $uid}) RETURN a",
		map[string]interface{}{"uid": uid})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return nodeToAccount(results[0]["a"])
}

// WritePosixAttributes persists a full attribute set for a user
func (nd *Neo4jDirectory) WritePosixAttributes(ctx context.Context, uid string, account *types.PosixAccount) error {
	mode, hosts := trustToProps(account.Trust)
	props := map[string]interface{}{
		"uid":            uid,
		"uid_number":     account.UIDNumber,
		"gid_number":     account.GIDNumber,
		"home_directory": account.HomeDirectory,
		"login_shell":    account.LoginShell,
		"gecos":          account.GECOS,
		"trust_mode":     mode,
		"trust_hosts":    hosts,
	}
	addShadowProps(props, &account.Shadow)

	results, err := nd.run(ctx, neo4j.AccessModeWrite, `
		OPTIONAL MATCH (existing:PosixAccount {uid: $uid})
		WITH count(existing) AS conflicts
		WHERE conflicts = 0
		CREATE (a:PosixAccount)
		SET a = $props, a.created_at = datetime()
		RETURN count(a) AS c
	`, map[string]interface{}{"uid": uid, "props": props})
	if err != nil {
		return err
	}
	if countResult(results) == 0 {
		return errors.NewAlreadyExistsError("posix account")
	}
	return nil
}

// ApplyPosixChanges applies a sparse attribute patch to a user
func (nd *Neo4jDirectory) ApplyPosixChanges(ctx context.Context, uid string, changes map[string]interface{}) error {
	props := make(map[string]interface{})
	for key, value := range changes {
		switch key {
		case "gid_number", "home_directory", "login_shell", "gecos":
			props[key] = value
		case "shadow":
			shadow, ok := value.(*types.ShadowFields)
			if !ok {
				return errors.NewInvalidInputError("shadow patch has wrong type")
			}
			addShadowProps(props, shadow)
		case "trust":
			trust, ok := value.(*types.TrustScope)
			if !ok {
				return errors.NewInvalidInputError("trust patch has wrong type")
			}
			props["trust_mode"], props["trust_hosts"] = trustToProps(trust)
		default:
			return errors.NewInvalidInputError("unknown attribute: " + key)
		}
	}
	if len(props) == 0 {
		return nil
	}

	results, err := nd.run(ctx, neo4j.AccessModeWrite, `
		MATCH (a:PosixAccount {uid: $uid})
		SET a += $props
		RETURN count(a) AS c
	`, map[string]interface{}{"uid": uid, "props": props})
	if err != nil {
		return err
	}
	if countResult(results) == 0 {
		return errors.NewNotFoundError("posix account " + uid)
	}
	return nil
}

// RemovePosixAttributes strips all POSIX attributes from a user
func (nd *Neo4jDirectory) RemovePosixAttributes(ctx context.Context, uid string) error {
	_, err := nd.run(ctx, neo4j.AccessModeWrite, `
		MATCH (a:PosixAccount {uid: $uid})
		DETACH DELETE a
		WITH $uid AS uid
		MATCH (g:PosixGroup)
		WHERE uid IN coalesce(g.member_uids, [])
		SET g.member_uids = [m IN g.member_uids WHERE m <> uid]
	`, map[string]interface{}{"uid": uid})
	return err
}

// GetShadowFields reads the shadow aging attributes for status display
func (nd *Neo4jDirectory) GetShadowFields(ctx context.Context, uid string) (*types.ShadowFields, error) {
	account, err := nd.GetPosixAccount(ctx, uid)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}
	shadow := account.Shadow
	return &shadow, nil
}

// HealthCheck verifies the backend is reachable
func (nd *Neo4jDirectory) HealthCheck(ctx context.Context) error {
	if nd.IsClosed() {
		return errors.NewDirectoryError("directory backend is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, nd.config.Timeout)
	defer cancel()

	if err := nd.driver.VerifyConnectivity(ctx); err != nil {
		nd.UpdateHealth("unhealthy", err)
		return err
	}
	nd.UpdateHealth("healthy", nil)
	return nil
}

// Close closes the database connection
func (nd *Neo4jDirectory) Close() error {
	if nd.driver != nil {
		nd.driver.Close(context.Background())
		nd.driver = nil
	}
	return nd.BaseDirectory.Close()
}

func collectIDs(results []map[string]interface{}) []int {
	ids := make([]int, 0, len(results))
	for _, result := range results {
		if id, ok := result["id"].(int64); ok {
			ids = append(ids, int(id))
		}
	}
	sort.Ints(ids)
	return ids
}

func countResult(results []map[string]interface{}) int64 {
	if len(results) == 0 {
		return 0
	}
	if c, ok := results[0]["c"].(int64); ok {
		return c
	}
	return 0
}

func trustToProps(trust *types.TrustScope) (string, []string) {
	if trust == nil {
		return "", nil
	}
	return string(trust.Mode), trust.Hosts
}

func addShadowProps(props map[string]interface{}, shadow *types.ShadowFields) {
	setOrNil := func(key string, value *int64) {
		if value != nil {
			props[key] = *value
		} else {
			props[key] = nil
		}
	}
	setOrNil("shadow_last_change", shadow.LastChange)
	setOrNil("shadow_min", shadow.Min)
	setOrNil("shadow_max", shadow.Max)
	setOrNil("shadow_warning", shadow.Warning)
	setOrNil("shadow_inactive", shadow.Inactive)
	setOrNil("shadow_expire", shadow.Expire)
}

func nodeToAccount(value interface{}) (*types.PosixAccount, error) {
	node, ok := value.(neo4j.Node)
	if !ok {
		return nil, errors.NewDirectoryError("unexpected result shape for account node")
	}
	props := node.Props

	account := &types.PosixAccount{
		UID:           stringProp(props, "uid"),
		UIDNumber:     intProp(props, "uid_number"),
		GIDNumber:     intProp(props, "gid_number"),
		HomeDirectory: stringProp(props, "home_directory"),
		LoginShell:    stringProp(props, "login_shell"),
		GECOS:         stringProp(props, "gecos"),
		Shadow: types.ShadowFields{
			LastChange: int64Prop(props, "shadow_last_change"),
			Min:        int64Prop(props, "shadow_min"),
			Max:        int64Prop(props, "shadow_max"),
			Warning:    int64Prop(props, "shadow_warning"),
			Inactive:   int64Prop(props, "shadow_inactive"),
			Expire:     int64Prop(props, "shadow_expire"),
		},
	}
	if mode := stringProp(props, "trust_mode"); mode != "" {
		account.Trust = &types.TrustScope{
			Mode:  types.TrustMode(mode),
			Hosts: stringListProp(props, "trust_hosts"),
		}
	}
	return account, nil
}

func nodeToGroup(value interface{}) (*types.PosixGroup, error) {
	node, ok := value.(neo4j.Node)
	if !ok {
		return nil, errors.NewDirectoryError("unexpected result shape for group node")
	}
	props := node.Props

	group := &types.PosixGroup{
		CN:          stringProp(props, "cn"),
		GIDNumber:   intProp(props, "gid_number"),
		Description: stringProp(props, "description"),
		MemberUIDs:  stringListProp(props, "member_uids"),
	}
	if mode := stringProp(props, "trust_mode"); mode != "" {
		group.Trust = &types.TrustScope{
			Mode:  types.TrustMode(mode),
			Hosts: stringListProp(props, "trust_hosts"),
		}
	}
	return group, nil
}

func stringProp(props map[string]interface{}, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func intProp(props map[string]interface{}, key string) int {
	if v, ok := props[key].(int64); ok {
		return int(v)
	}
	return 0
}

func int64Prop(props map[string]interface{}, key string) *int64 {
	if v, ok := props[key].(int64); ok {
		return &v
	}
	return nil
}

func stringListProp(props map[string]interface{}, key string) []string {
	raw, ok := props[key].([]interface{})
	if !ok {
		return nil
	}
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			items = append(items, s)
		}
	}
	return items
}
