package mixins

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/mixin"
)

type TimeMixin struct {
	mixin.Schema
}

func (TimeMixin) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("created_at").Comment("创建时间,unix毫秒时间戳").
			Immutable().
			DefaultFunc(NowMillis),
		field.Int64("updated_at").Comment("更新时间,unix毫秒时间戳").
			DefaultFunc(NowMillis).
			UpdateDefault(NowMillis),
	}
}

// NowMillis 当前 unix 毫秒时间戳
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
