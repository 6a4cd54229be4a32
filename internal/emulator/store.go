package emulator

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/udovin/gosql"

	"github.com/udovin/cloudctl/internal/management"
)

const (
	clusterTable = "cloudctl_cluster"
	addOnTable   = "cloudctl_addon"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS "` + clusterTable + `" (` +
		`"name" VARCHAR(64) NOT NULL PRIMARY KEY, ` +
		`"location" VARCHAR(255) NOT NULL, ` +
		`"state" VARCHAR(32) NOT NULL, ` +
		`"node_count" INTEGER NOT NULL, ` +
		`"version" VARCHAR(32) NOT NULL, ` +
		`"connection_url" VARCHAR(255) NOT NULL, ` +
		`"http_user_name" VARCHAR(255) NOT NULL, ` +
		`"default_storage_account" VARCHAR(255) NOT NULL, ` +
		`"default_storage_container" VARCHAR(255) NOT NULL, ` +
		`"create_time" BIGINT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS "` + addOnTable + `" (` +
		`"name" VARCHAR(128) NOT NULL PRIMARY KEY, ` +
		`"type" VARCHAR(255) NOT NULL, ` +
		`"plan" VARCHAR(255) NOT NULL, ` +
		`"location" VARCHAR(255) NOT NULL, ` +
		`"state" VARCHAR(32) NOT NULL)`,
}

// ApplySchema creates emulator tables if they do not exist.
func ApplySchema(ctx context.Context, db *gosql.DB) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("cannot apply schema: %w", err)
		}
	}
	return nil
}

var clusterColumns = []string{
	"name", "location", "state", "node_count", "version",
	"connection_url", "http_user_name", "default_storage_account",
	"default_storage_container", "create_time",
}

// ClusterStore represents store for clusters.
type ClusterStore struct {
	db *gosql.DB
}

func NewClusterStore(db *gosql.DB) *ClusterStore {
	return &ClusterStore{db: db}
}

// Get returns cluster by name or sql.ErrNoRows.
func (s *ClusterStore) Get(ctx context.Context, name string) (management.Cluster, error) {
	row, err := getRow(ctx, s.db, clusterTable, clusterColumns, name)
	if err != nil {
		return management.Cluster{}, err
	}
	return scanCluster(row)
}

// All returns all clusters ordered by name.
func (s *ClusterStore) All(ctx context.Context) ([]management.Cluster, error) {
	rows, err := allRows(ctx, s.db, clusterTable, clusterColumns)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var clusters []management.Cluster
	for rows.Next() {
		cluster, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, cluster)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Name < clusters[j].Name
	})
	return clusters, nil
}

func (s *ClusterStore) Create(ctx context.Context, cluster management.Cluster) error {
	return insertRow(
		ctx, s.db, clusterTable, clusterColumns,
		cluster.Name, cluster.Location, cluster.State, cluster.NodeCount,
		cluster.Version, cluster.ConnectionURL, cluster.HTTPUserName,
		cluster.DefaultStorageAccount, cluster.DefaultStorageContainer,
		cluster.CreateTime,
	)
}

// Delete deletes cluster by name or returns sql.ErrNoRows.
func (s *ClusterStore) Delete(ctx context.Context, name string) error {
	return deleteRow(ctx, s.db, clusterTable, name)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCluster(row rowScanner) (management.Cluster, error) {
	var cluster management.Cluster
	err := row.Scan(
		&cluster.Name, &cluster.Location, &cluster.State, &cluster.NodeCount,
		&cluster.Version, &cluster.ConnectionURL, &cluster.HTTPUserName,
		&cluster.DefaultStorageAccount, &cluster.DefaultStorageContainer,
		&cluster.CreateTime,
	)
	return cluster, err
}

var addOnColumns = []string{"name", "type", "plan", "location", "state"}

// AddOnStore represents store for add-ons.
type AddOnStore struct {
	db *gosql.DB
}

func NewAddOnStore(db *gosql.DB) *AddOnStore {
	return &AddOnStore{db: db}
}

// Get returns add-on by name or sql.ErrNoRows.
func (s *AddOnStore) Get(ctx context.Context, name string) (management.AddOn, error) {
	row, err := getRow(ctx, s.db, addOnTable, addOnColumns, name)
	if err != nil {
		return management.AddOn{}, err
	}
	return scanAddOn(row)
}

// All returns all add-ons ordered by name.
func (s *AddOnStore) All(ctx context.Context) ([]management.AddOn, error) {
	rows, err := allRows(ctx, s.db, addOnTable, addOnColumns)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var addons []management.AddOn
	for rows.Next() {
		addon, err := scanAddOn(rows)
		if err != nil {
			return nil, err
		}
		addons = append(addons, addon)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(addons, func(i, j int) bool {
		return addons[i].Name < addons[j].Name
	})
	return addons, nil
}

func (s *AddOnStore) Create(ctx context.Context, addon management.AddOn) error {
	return insertRow(
		ctx, s.db, addOnTable, addOnColumns,
		addon.Name, addon.Type, addon.Plan, addon.Location, addon.State,
	)
}

// Delete deletes add-on by name or returns sql.ErrNoRows.
func (s *AddOnStore) Delete(ctx context.Context, name string) error {
	return deleteRow(ctx, s.db, addOnTable, name)
}

func scanAddOn(row rowScanner) (management.AddOn, error) {
	var addon management.AddOn
	err := row.Scan(
		&addon.Name, &addon.Type, &addon.Plan, &addon.Location, &addon.State,
	)
	return addon, err
}

func getRow(
	ctx context.Context, db *gosql.DB, table string, columns []string, name string,
) (*sql.Row, error) {
	query := db.Select(table)
	query.SetNames(columns...)
	query.SetWhere(gosql.Column("name").Equal(name))
	query.SetLimit(1)
	rawQuery, values := db.Build(query)
	row := db.QueryRowContext(ctx, rawQuery, values...)
	return row, row.Err()
}

func allRows(
	ctx context.Context, db *gosql.DB, table string, columns []string,
) (*sql.Rows, error) {
	query := db.Select(table)
	query.SetNames(columns...)
	rawQuery, values := db.Build(query)
	return db.QueryContext(ctx, rawQuery, values...)
}

func insertRow(
	ctx context.Context, db *gosql.DB, table string, columns []string, values ...any,
) error {
	query := db.Insert(table)
	query.SetNames(columns...)
	query.SetValues(values...)
	res, err := db.ExecContext(ctx, db.BuildString(query), values...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("invalid amount of affected rows: %d", count)
	}
	return nil
}

func deleteRow(ctx context.Context, db *gosql.DB, table, name string) error {
	query := db.Delete(table)
	query.SetWhere(gosql.Column("name").Equal(name))
	rawQuery, values := db.Build(query)
	res, err := db.ExecContext(ctx, rawQuery, values...)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count != 1 {
		return sql.ErrNoRows
	}
	return nil
}
