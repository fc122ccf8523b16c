package service

import (
	"net/http"
	"strings"

	"kiosk-go/internal/biz"

	"github.com/go-kratos/kratos/v2/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// LangParam 查询参数，优先于 Accept-Language
const LangParam = "lang"

var supported = []language.Tag{language.Korean, language.English}

var matcher = language.NewMatcher(supported)

// 消息键
const (
	msgRequired       = "%s is required"
	msgInvalid        = "%s is invalid"
	msgNotFound       = "%s not found"
	msgFloorConflict  = "floor %s already exists in this building"
	msgConflict       = "resource already exists"
	msgNoUpdates      = "No valid updates provided"
	msgImageType      = "unsupported image type"
	msgImageSize      = "image too large"
	msgRateLimit      = "rate limit exceeded"
	msgInternal       = "internal server error"
	msgFetchFailed    = "Failed to fetch data"
	msgKindBuilding   = "building"
	msgKindFloor      = "floor"
	msgKindRoom       = "room"
	msgKindConnection = "connection"
	msgKindImage      = "image"
)

var messages = catalog.NewBuilder(catalog.Fallback(language.Korean))

func init() {
	for key, text := range map[string][2]string{
		msgRequired:       {"%s 항목은 필수입니다.", "%s is required."},
		msgInvalid:        {"%s 값이 올바르지 않습니다.", "%s is invalid."},
		msgNotFound:       {"%s을(를) 찾을 수 없습니다.", "%s not found."},
		msgFloorConflict:  {"이 건물에는 이미 %s층이 있습니다.", "Floor %s already exists in this building."},
		msgConflict:       {"이미 존재하는 항목입니다.", "Resource already exists."},
		msgNoUpdates:      {"수정할 항목이 없습니다.", "No valid updates provided"},
		msgImageType:      {biz.ErrImageUnsupported.Message, "Unsupported file type. Only JPG, PNG and WebP files can be uploaded."},
		msgImageSize:      {biz.ErrImageTooLarge.Message, "File is too large. Only files up to 5MB can be uploaded."},
		msgRateLimit:      {"요청이 너무 많습니다. 잠시 후 다시 시도해 주세요.", "Too many requests, please retry later."},
		msgInternal:       {"서버 오류가 발생했습니다.", "Internal server error."},
		msgFetchFailed:    {"데이터를 불러오지 못했습니다.", "Failed to fetch data"},
		msgKindBuilding:   {"건물", "Building"},
		msgKindFloor:      {"층", "Floor"},
		msgKindRoom:       {"방", "Room"},
		msgKindConnection: {"연결통로", "Connection"},
		msgKindImage:      {"이미지", "Image"},
	} {
		_ = messages.SetString(language.Korean, key, text[0])
		_ = messages.SetString(language.English, key, text[1])
	}
}

// ResolveTag lang 参数优先，其次 Accept-Language，默认韩语
func ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return language.Korean
	}
	var prefs []language.Tag
	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, err := language.Parse(v); err == nil {
			prefs = append(prefs, tag)
		}
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			prefs = append(prefs, tags...)
		}
	}
	if len(prefs) == 0 {
		return language.Korean
	}
	_, idx, conf := matcher.Match(prefs...)
	if conf == language.No {
		return language.Korean
	}
	return supported[idx]
}

// Printer 指定语言的消息打印器
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

var kindKeys = map[string]string{
	biz.KindBuilding:   msgKindBuilding,
	biz.KindFloor:      msgKindFloor,
	biz.KindRoom:       msgKindRoom,
	biz.KindConnection: msgKindConnection,
	biz.KindImage:      msgKindImage,
}

// Localize 把错误翻译成请求语言的提示。没有对应文案的错误保留原始消息。
func Localize(r *http.Request, err error) string {
	se := errors.FromError(err)
	p := Printer(ResolveTag(r))
	md := se.Metadata
	switch se.Reason {
	case biz.ReasonValidation:
		if md["rule"] == "required" {
			return p.Sprintf(msgRequired, md["field"])
		}
		if md["rule"] == "invalid" {
			return p.Sprintf(msgInvalid, md["field"])
		}
	case biz.ReasonNotFound:
		if key, ok := kindKeys[md["kind"]]; ok {
			return p.Sprintf(msgNotFound, p.Sprintf(key))
		}
	case biz.ReasonConflict:
		if md["kind"] == biz.KindFloor {
			return p.Sprintf(msgFloorConflict, md["floor_number"])
		}
		return p.Sprintf(msgConflict)
	case biz.ReasonNoUpdates:
		return p.Sprintf(msgNoUpdates)
	case biz.ReasonImageType:
		return p.Sprintf(msgImageType)
	case biz.ReasonImageSize:
		return p.Sprintf(msgImageSize)
	case biz.ReasonRateLimit:
		return p.Sprintf(msgRateLimit)
	case biz.ReasonFetchFailed:
		return p.Sprintf(msgFetchFailed)
	}
	if se.Code >= 500 {
		return p.Sprintf(msgInternal)
	}
	return se.Message
}
