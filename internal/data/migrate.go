package data

import (
	"context"
	"fmt"

	kioskschema "kiosk-go/ent/schema"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/entc/gen"
	"entgo.io/ent/entc/load"
)

const (
	tableBuildings   = "buildings"
	tableFloors      = "floors"
	tableRooms       = "rooms"
	tableConnections = "connections"
)

// Tables 用 entc 的代码生成图从 ent/schema 推导建表描述，与 go generate 生成的 migrate 包一致
func Tables() ([]*schema.Table, error) {
	storage, err := gen.NewStorage("sql")
	if err != nil {
		return nil, err
	}
	schemas := make([]*load.Schema, 0, len(kioskschema.All))
	for _, s := range kioskschema.All {
		b, err := load.MarshalSchema(s)
		if err != nil {
			return nil, err
		}
		ls, err := load.UnmarshalSchema(b)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, ls)
	}
	graph, err := gen.NewGraph(&gen.Config{Package: "kiosk-go/ent", Storage: storage}, schemas...)
	if err != nil {
		return nil, fmt.Errorf("load ent schema: %w", err)
	}
	return graph.Tables()
}

// Migrate 创建或补齐表结构
func Migrate(ctx context.Context, drv dialect.Driver) error {
	tables, err := Tables()
	if err != nil {
		return err
	}
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
