package schema

import (
	"kiosk-go/pkg/ent/mixins"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Floor 楼层，楼层号在建筑内唯一
type Floor struct {
	ent.Schema
}

func (Floor) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "floors"},
	}
}

func (Floor) Mixin() []ent.Mixin {
	return []ent.Mixin{
		mixins.UUIDMixin{},
		mixins.TimeMixin{},
	}
}

// Fields of the Floor.
func (Floor) Fields() []ent.Field {
	return []ent.Field{
		field.String("building_id").MaxLen(36),
		field.Int("floor_number"),
		field.String("name").NotEmpty(),
		field.Text("description").Optional().Nillable(),
	}
}

// Edges of the Floor.
func (Floor) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("building", Building.Type).
			Ref("floors").
			Field("building_id").
			Unique().
			Required(),
		edge.To("rooms", Room.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("connections1", Connection.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("connections2", Connection.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

func (Floor) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("building_id", "floor_number").Unique(),
	}
}
