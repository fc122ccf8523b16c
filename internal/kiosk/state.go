// Package kiosk 终端侧的数据缓存：持有一份聚合快照，定时刷新，提供同步查询。
package kiosk

import (
	"time"

	"kiosk-go/internal/biz"
)

// State 缓存状态。LastUpdated 为零值表示从未成功加载。
type State struct {
	Buildings   []biz.BuildingWithFloors `json:"buildings"`
	Connections []biz.Connection         `json:"connections"`
	IsLoading   bool                     `json:"isLoading"`
	Error       string                   `json:"error,omitempty"`
	LastUpdated time.Time                `json:"lastUpdated"`
}

// Initial 空快照，未加载，无错误
func Initial() State {
	return State{
		Buildings:   []biz.BuildingWithFloors{},
		Connections: []biz.Connection{},
	}
}

// Action 状态变更，只能是本包定义的几种类型
type Action interface {
	action()
}

type SetLoading struct {
	Loading bool
}

// SetData 整体替换快照
type SetData struct {
	Buildings   []biz.BuildingWithFloors
	Connections []biz.Connection
	At          time.Time
}

type SetError struct {
	Message string
}

type ClearError struct{}

// AddBuilding 服务端已创建的建筑，追加到末尾
type AddBuilding struct {
	Building biz.BuildingWithFloors
	At       time.Time
}

// ReplaceBuilding 按 ID 替换，ID 不存在时不变
type ReplaceBuilding struct {
	Building biz.BuildingWithFloors
	At       time.Time
}

type RemoveBuilding struct {
	ID string
	At time.Time
}

func (SetLoading) action()      {}
func (SetData) action()         {}
func (SetError) action()        {}
func (ClearError) action()      {}
func (AddBuilding) action()     {}
func (ReplaceBuilding) action() {}
func (RemoveBuilding) action()  {}

// Reduce 纯函数，返回新状态，不修改 s 引用的切片
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case SetLoading:
		s.IsLoading = a.Loading
	case SetData:
		s.Buildings = orEmpty(a.Buildings)
		s.Connections = a.Connections
		if s.Connections == nil {
			s.Connections = []biz.Connection{}
		}
		s.IsLoading = false
		s.Error = ""
		s.LastUpdated = a.At
	case SetError:
		s.Error = a.Message
		s.IsLoading = false
	case ClearError:
		s.Error = ""
	case AddBuilding:
		next := make([]biz.BuildingWithFloors, 0, len(s.Buildings)+1)
		next = append(next, s.Buildings...)
		s.Buildings = append(next, a.Building)
		s.LastUpdated = a.At
	case ReplaceBuilding:
		next := make([]biz.BuildingWithFloors, len(s.Buildings))
		copy(next, s.Buildings)
		for i := range next {
			if next[i].ID == a.Building.ID {
				next[i] = a.Building
			}
		}
		s.Buildings = next
		s.LastUpdated = a.At
	case RemoveBuilding:
		next := make([]biz.BuildingWithFloors, 0, len(s.Buildings))
		for _, b := range s.Buildings {
			if b.ID != a.ID {
				next = append(next, b)
			}
		}
		s.Buildings = next
		s.LastUpdated = a.At
	}
	return s
}

func orEmpty(b []biz.BuildingWithFloors) []biz.BuildingWithFloors {
	if b == nil {
		return []biz.BuildingWithFloors{}
	}
	return b
}
