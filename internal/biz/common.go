package biz

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/errors"
)

const (
	ReasonValidation  = "VALIDATION_FAILED"
	ReasonNoUpdates   = "NO_UPDATES"
	ReasonImageType   = "IMAGE_TYPE_UNSUPPORTED"
	ReasonImageSize   = "IMAGE_TOO_LARGE"
	ReasonNotFound    = "NOT_FOUND"
	ReasonConflict    = "CONFLICT"
	ReasonInternal    = "INTERNAL_SERVER"
	ReasonRateLimit   = "RATE_LIMIT"
	ReasonFetchFailed = "FETCH_FAILED"
)

var (
	ErrNoUpdates        = errors.New(400, ReasonNoUpdates, "No valid updates provided")
	ErrImageUnsupported = errors.New(400, ReasonImageType, "지원되지 않는 파일 형식입니다. JPG, PNG, WebP 파일만 업로드 가능합니다.")
	ErrImageTooLarge    = errors.New(400, ReasonImageSize, "파일 크기가 너무 큽니다. 5MB 이하의 파일만 업로드 가능합니다.")
	ErrNotFound         = errors.New(404, ReasonNotFound, "resource not found")
	ErrConflict         = errors.New(409, ReasonConflict, "resource already exists")
	ErrInternalServer   = errors.New(500, ReasonInternal, "internal server error")
)

// 实体类型，出现在 NOT_FOUND 的 metadata 中
const (
	KindBuilding   = "building"
	KindFloor      = "floor"
	KindRoom       = "room"
	KindConnection = "connection"
	KindImage      = "image"
)

// Required 必填字段缺失
func Required(field string) *errors.Error {
	return errors.New(400, ReasonValidation, fmt.Sprintf("%s is required", field)).
		WithMetadata(map[string]string{"field": field, "rule": "required"})
}

// Invalid 字段格式非法
func Invalid(field string) *errors.Error {
	return errors.New(400, ReasonValidation, fmt.Sprintf("%s is invalid", field)).
		WithMetadata(map[string]string{"field": field, "rule": "invalid"})
}

// NotFound 指定实体不存在
func NotFound(kind, id string) *errors.Error {
	return errors.New(404, ReasonNotFound, fmt.Sprintf("%s %s not found", kind, id)).
		WithMetadata(map[string]string{"kind": kind, "id": id})
}

// FloorConflict 同一建筑内楼层号重复
func FloorConflict(buildingID string, number int) *errors.Error {
	return errors.New(409, ReasonConflict, fmt.Sprintf("floor %d already exists in building %s", number, buildingID)).
		WithMetadata(map[string]string{"kind": KindFloor, "floor_number": fmt.Sprint(number)})
}
