package schema

import (
	"kiosk-go/pkg/ent/mixins"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Connection 两栋建筑楼层之间的通道，只有启用的才对外展示
type Connection struct {
	ent.Schema
}

func (Connection) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "connections"},
	}
}

func (Connection) Mixin() []ent.Mixin {
	return []ent.Mixin{
		mixins.UUIDMixin{},
		mixins.TimeMixin{},
	}
}

// Fields of the Connection.
func (Connection) Fields() []ent.Field {
	return []ent.Field{
		field.String("building1_id").MaxLen(36),
		field.String("building2_id").MaxLen(36),
		field.String("floor1_id").MaxLen(36),
		field.String("floor2_id").MaxLen(36),
		field.String("name").NotEmpty(),
		field.Bool("is_active").Default(true),
	}
}

// Edges of the Connection.
func (Connection) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("building1", Building.Type).Ref("connections1").Field("building1_id").Unique().Required(),
		edge.From("building2", Building.Type).Ref("connections2").Field("building2_id").Unique().Required(),
		edge.From("floor1", Floor.Type).Ref("connections1").Field("floor1_id").Unique().Required(),
		edge.From("floor2", Floor.Type).Ref("connections2").Field("floor2_id").Unique().Required(),
	}
}
