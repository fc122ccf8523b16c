package schema

import (
	"kiosk-go/pkg/ent/mixins"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Building 建筑
type Building struct {
	ent.Schema
}

func (Building) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "buildings"},
	}
}

func (Building) Mixin() []ent.Mixin {
	return []ent.Mixin{
		mixins.UUIDMixin{},
		mixins.TimeMixin{},
	}
}

// Fields of the Building.
func (Building) Fields() []ent.Field {
	return []ent.Field{
		field.String("name").NotEmpty(),
		field.Text("description").Optional().Nillable(),
	}
}

// Edges of the Building.
func (Building) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("floors", Floor.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		// 通道的两端
		edge.To("connections1", Connection.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("connections2", Connection.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}
