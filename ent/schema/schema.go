package schema

import "entgo.io/ent"

// All 按依赖顺序排列，被引用的表在前
var All = []ent.Interface{
	Building{},
	Floor{},
	Room{},
	Connection{},
}
