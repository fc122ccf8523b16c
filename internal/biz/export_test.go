package biz

import "time"

// SetClock 测试中固定时间
func (uc *FacilityUsecase) SetClock(now func() time.Time) {
	uc.now = now
	if uc.images != nil {
		uc.images.now = now
	}
}
