package service

import (
	"context"
	"fmt"
	"time"

	"kiosk-go/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/xuri/excelize/v2"
)

const (
	RoomSheet       = "Rooms"
	ConnectionSheet = "Connections"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	roomHeader       = []any{"건물", "층", "층 이름", "방", "설명", "이미지", "X", "Y"}
	connectionHeader = []any{"이름", "건물 1", "층 1", "건물 2", "층 2", "사용"}
)

// BuildDirectory 生成房间目录工作簿：每个房间一行，另有一张通道表
func BuildDirectory(s *biz.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", RoomSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(ConnectionSheet); err != nil {
		f.Close()
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	rows := [][]any{roomHeader}
	for _, b := range s.Buildings {
		for _, fl := range b.Floors {
			for _, r := range fl.Rooms {
				rows = append(rows, []any{b.Name, fl.FloorNumber, fl.Name, r.Name, r.Description, r.ImageURL, intCell(r.PositionX), intCell(r.PositionY)})
			}
		}
	}
	if err := writeRows(f, RoomSheet, rows, bold); err != nil {
		f.Close()
		return nil, err
	}

	rows = [][]any{connectionHeader}
	for _, c := range s.Connections {
		rows = append(rows, []any{c.Name, c.Building1Name, c.Floor1Name, c.Building2Name, c.Floor2Name, c.IsActive})
	}
	if err := writeRows(f, ConnectionSheet, rows, bold); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func intCell(p *int) any {
	if p == nil {
		return ""
	}
	return *p
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	lastCol, _, err := excelize.SplitCellName(last)
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}

// ExportService 管理端导出
type ExportService struct {
	snapshots *biz.SnapshotUsecase
	log       *log.Helper
}

func NewExportService(snapshots *biz.SnapshotUsecase, logger log.Logger) *ExportService {
	return &ExportService{snapshots: snapshots, log: log.NewHelper(logger)}
}

// Download GET /admin/export.xlsx
func (s *ExportService) Download(ctx http.Context) error {
	out, err := invoke(ctx, AdminOperation+"/export", func(c context.Context) (any, error) {
		snap, err := s.snapshots.Snapshot(c)
		if err != nil {
			return nil, err
		}
		f, err := BuildDirectory(snap)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		buf, err := f.WriteToBuffer()
		if err != nil {
			return nil, err
		}
		s.log.WithContext(c).Infof("directory exported rooms=%d", snap.RoomCount())
		return buf.Bytes(), nil
	})
	if err != nil {
		return err
	}
	name := fmt.Sprintf("kiosk-directory-%s.xlsx", time.Now().Format("20060102"))
	ctx.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	return ctx.Blob(200, xlsxContentType, out.([]byte))
}
