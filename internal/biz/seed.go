package biz

import (
	"context"
)

type seedRoom struct {
	name, description string
}

type seedFloor struct {
	number            int
	name, description string
	rooms             []seedRoom
}

type seedBuilding struct {
	name, description string
	floors            []seedFloor
}

var sampleFacility = []seedBuilding{
	{
		name:        "동행관",
		description: "복지관의 메인 건물로 다양한 교육 및 상담 프로그램이 운영됩니다.",
		floors: []seedFloor{
			{1, "1층", "로비, 카페동행, 안내데스크가 있습니다.", []seedRoom{
				{"로비", "복지관 메인 로비 공간입니다."},
				{"카페동행", "따뜻한 음료와 간단한 식사를 제공하는 카페입니다."},
				{"안내데스크", "방문자 접수 및 안내를 담당하는 데스크입니다."},
			}},
			{2, "2층", "교육실과 회의실이 있습니다.", []seedRoom{
				{"교육실 A", "수화교육 및 언어치료 프로그램이 진행됩니다."},
				{"교육실 B", "컴퓨터 교육 및 디지털 활용 교육이 진행됩니다."},
				{"회의실", "직원 회의 및 소규모 모임 공간입니다."},
			}},
			{3, "3층", "상담실과 치료실이 있습니다.", []seedRoom{
				{"개별상담실 1", "1:1 개별 상담이 진행되는 공간입니다."},
				{"개별상담실 2", "가족상담 및 집단상담이 진행되는 공간입니다."},
				{"치료실", "언어치료 및 재활치료가 진행되는 공간입니다."},
			}},
			{4, "4층", "직업훈련실이 있습니다.", []seedRoom{
				{"제과제빵실", "제과제빵 기술을 배우는 직업훈련실입니다."},
				{"공예실", "다양한 공예 활동이 진행되는 공간입니다."},
				{"컴퓨터실", "IT 관련 직업훈련이 진행되는 공간입니다."},
			}},
		},
	},
	{
		name:        "소통관",
		description: "갤러리와 전시 공간이 있는 문화 건물입니다.",
		floors: []seedFloor{
			{1, "1층", "입구와 안내 공간입니다.", []seedRoom{
				{"입구홀", "소통관의 메인 입구 공간입니다."},
				{"안내부스", "소통관 이용 안내를 제공하는 공간입니다."},
			}},
			{2, "2층", "갤러리동행과 전시 공간입니다.", []seedRoom{
				{"갤러리동행", "농아인 작가들의 작품을 전시하는 갤러리입니다."},
				{"전시실 A", "기획전시가 진행되는 공간입니다."},
				{"전시실 B", "상설전시 및 체험전시 공간입니다."},
			}},
		},
	},
}

// SeedMessage 生成样例数据后返回给管理端的提示
const SeedMessage = "샘플 데이터가 성공적으로 생성되었습니다."

// Seed 写入样例建筑。已存在同名建筑时跳过，避免重复生成。
// 返回本次新建的建筑。
func (uc *FacilityUsecase) Seed(ctx context.Context) ([]*Building, error) {
	existing, err := uc.repo.ListBuildings(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(existing))
	for _, b := range existing {
		names[b.Name] = true
	}

	var created []*Building
	for _, sb := range sampleFacility {
		if names[sb.name] {
			uc.log.WithContext(ctx).Infof("seed: building %s exists, skipped", sb.name)
			continue
		}
		b, err := uc.CreateBuilding(ctx, BuildingInput{Name: sb.name, Description: sb.description})
		if err != nil {
			return created, err
		}
		for _, sf := range sb.floors {
			f, err := uc.CreateFloor(ctx, FloorInput{
				BuildingID:  b.ID,
				FloorNumber: sf.number,
				Name:        sf.name,
				Description: sf.description,
			})
			if err != nil {
				return created, err
			}
			for _, sr := range sf.rooms {
				if _, err := uc.CreateRoom(ctx, RoomInput{FloorID: f.ID, Name: sr.name, Description: sr.description}); err != nil {
					return created, err
				}
			}
		}
		created = append(created, b)
	}
	uc.log.WithContext(ctx).Infof("seed: %d buildings created", len(created))
	return created, nil
}
