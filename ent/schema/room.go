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

// Room 房间
type Room struct {
	ent.Schema
}

func (Room) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "rooms"},
	}
}

func (Room) Mixin() []ent.Mixin {
	return []ent.Mixin{
		mixins.UUIDMixin{},
		mixins.TimeMixin{},
	}
}

// Fields of the Room.
func (Room) Fields() []ent.Field {
	return []ent.Field{
		field.String("floor_id").MaxLen(36),
		field.String("name").NotEmpty(),
		field.Text("description").Optional().Nillable(),
		// 图片公开地址
		field.Text("image_url").Optional().Nillable(),
		// 平面图上的像素坐标，只在创建时设置
		field.Int("position_x").Optional().Nillable().Immutable(),
		field.Int("position_y").Optional().Nillable().Immutable(),
	}
}

// Edges of the Room.
func (Room) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("floor", Floor.Type).
			Ref("rooms").
			Field("floor_id").
			Unique().
			Required(),
	}
}

func (Room) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("floor_id", "name"),
	}
}
