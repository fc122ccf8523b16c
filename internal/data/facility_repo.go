package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kiosk-go/internal/biz"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"github.com/go-kratos/kratos/v2/log"
)

// NewFacilityRepo 未配置数据库时返回内存实现
func NewFacilityRepo(d *Data, logger log.Logger) biz.FacilityRepo {
	if d.SQLDB() == nil {
		return NewMemoryRepo(logger)
	}
	return &facilityRepo{data: d, log: log.NewHelper(logger)}
}

type facilityRepo struct {
	data *Data
	log  *log.Helper
}

var (
	buildingColumns   = []string{"id", "name", "description", "created_at", "updated_at"}
	floorColumns      = []string{"id", "building_id", "floor_number", "name", "description", "created_at", "updated_at"}
	roomColumns       = []string{"id", "floor_id", "name", "description", "image_url", "position_x", "position_y", "created_at", "updated_at"}
	connectionColumns = []string{"id", "building1_id", "building2_id", "floor1_id", "floor2_id", "name", "is_active", "created_at", "updated_at"}
)

func (r *facilityRepo) db() *sql.DB {
	return r.data.SQLDB()
}

func (r *facilityRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.data.Dialect())
}

type scanner interface {
	Scan(dest ...any) error
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func scanBuilding(s scanner) (*biz.Building, error) {
	var (
		b                biz.Building
		desc             sql.NullString
		created, updated int64
	)
	if err := s.Scan(&b.ID, &b.Name, &desc, &created, &updated); err != nil {
		return nil, err
	}
	b.Description = desc.String
	b.CreatedAt, b.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &b, nil
}

func scanFloor(s scanner) (*biz.Floor, error) {
	var (
		f                biz.Floor
		number           int64
		desc             sql.NullString
		created, updated int64
	)
	if err := s.Scan(&f.ID, &f.BuildingID, &number, &f.Name, &desc, &created, &updated); err != nil {
		return nil, err
	}
	f.FloorNumber = int(number)
	f.Description = desc.String
	f.CreatedAt, f.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &f, nil
}

func scanRoom(s scanner) (*biz.Room, error) {
	var (
		room             biz.Room
		desc, image      sql.NullString
		px, py           sql.NullInt64
		created, updated int64
	)
	if err := s.Scan(&room.ID, &room.FloorID, &room.Name, &desc, &image, &px, &py, &created, &updated); err != nil {
		return nil, err
	}
	room.Description, room.ImageURL = desc.String, image.String
	room.PositionX, room.PositionY = intPtr(px), intPtr(py)
	room.CreatedAt, room.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &room, nil
}

// scanConnection withNames 为 true 时额外读取两端的建筑/楼层名称
func scanConnection(s scanner, withNames bool) (*biz.Connection, error) {
	var (
		c                biz.Connection
		created, updated int64
	)
	cols := []any{&c.ID, &c.Building1ID, &c.Building2ID, &c.Floor1ID, &c.Floor2ID, &c.Name, &c.IsActive, &created, &updated}
	if withNames {
		cols = append(cols, &c.Building1Name, &c.Building2Name, &c.Floor1Name, &c.Floor2Name)
	}
	if err := s.Scan(cols...); err != nil {
		return nil, err
	}
	c.CreatedAt, c.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &c, nil
}

func (r *facilityRepo) queryOne(ctx context.Context, table string, cols []string, id string) *sql.Row {
	b := r.builder()
	t := b.Table(table)
	query, args := b.Select(t.Columns(cols...)...).From(t).Where(entsql.EQ(t.C("id"), id)).Query()
	return r.db().QueryRowContext(ctx, query, args...)
}

func (r *facilityRepo) exec(ctx context.Context, q entsql.Querier) (sql.Result, error) {
	query, args := q.Query()
	return r.db().ExecContext(ctx, query, args...)
}

// mustAffect 受影响行数为 0 时返回 NOT_FOUND
func mustAffect(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return biz.NotFound(kind, id)
	}
	return nil
}

func (r *facilityRepo) ListBuildings(ctx context.Context) ([]*biz.Building, error) {
	b := r.builder()
	t := b.Table(tableBuildings)
	query, args := b.Select(t.Columns(buildingColumns...)...).From(t).
		OrderBy(t.C("name"), t.C("id")).Query()
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query buildings: %w", err)
	}
	defer rows.Close()
	out := make([]*biz.Building, 0)
	for rows.Next() {
		it, err := scanBuilding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *facilityRepo) GetBuilding(ctx context.Context, id string) (*biz.Building, error) {
	it, err := scanBuilding(r.queryOne(ctx, tableBuildings, buildingColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, biz.NotFound(biz.KindBuilding, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get building: %w", err)
	}
	return it, nil
}

func (r *facilityRepo) CreateBuilding(ctx context.Context, in *biz.Building) (*biz.Building, error) {
	ins := r.builder().Insert(tableBuildings).Columns(buildingColumns...).
		Values(in.ID, in.Name, nullString(in.Description), millis(in.CreatedAt), millis(in.UpdatedAt))
	if _, err := r.exec(ctx, ins); err != nil {
		return nil, r.constraint(err, "insert building")
	}
	return r.GetBuilding(ctx, in.ID)
}

// DeleteBuilding 外键级联之外再显式删除，保证不依赖方言的级联支持
func (r *facilityRepo) DeleteBuilding(ctx context.Context, id string) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		b := r.builder()
		floors := b.Select("id").From(b.Table(tableFloors)).Where(entsql.EQ("building_id", id))
		steps := []entsql.Querier{
			b.Delete(tableConnections).Where(entsql.Or(entsql.EQ("building1_id", id), entsql.EQ("building2_id", id))),
			b.Delete(tableRooms).Where(entsql.In("floor_id", floors)),
			b.Delete(tableFloors).Where(entsql.EQ("building_id", id)),
		}
		for _, q := range steps {
			query, args := q.Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("delete building %s: %w", id, err)
			}
		}
		query, args := b.Delete(tableBuildings).Where(entsql.EQ("id", id)).Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete building %s: %w", id, err)
		}
		return mustAffect(res, biz.KindBuilding, id)
	})
}

func (r *facilityRepo) ListFloors(ctx context.Context, buildingID string) ([]*biz.Floor, error) {
	b := r.builder()
	t := b.Table(tableFloors)
	query, args := b.Select(t.Columns(floorColumns...)...).From(t).
		Where(entsql.EQ(t.C("building_id"), buildingID)).
		OrderBy(t.C("floor_number")).Query()
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query floors: %w", err)
	}
	defer rows.Close()
	out := make([]*biz.Floor, 0)
	for rows.Next() {
		it, err := scanFloor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *facilityRepo) GetFloor(ctx context.Context, id string) (*biz.Floor, error) {
	it, err := scanFloor(r.queryOne(ctx, tableFloors, floorColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, biz.NotFound(biz.KindFloor, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get floor: %w", err)
	}
	return it, nil
}

func (r *facilityRepo) CreateFloor(ctx context.Context, in *biz.Floor) (*biz.Floor, error) {
	ins := r.builder().Insert(tableFloors).Columns(floorColumns...).
		Values(in.ID, in.BuildingID, in.FloorNumber, in.Name, nullString(in.Description), millis(in.CreatedAt), millis(in.UpdatedAt))
	if _, err := r.exec(ctx, ins); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return nil, biz.FloorConflict(in.BuildingID, in.FloorNumber)
		}
		if sqlgraph.IsForeignKeyConstraintError(err) {
			return nil, biz.NotFound(biz.KindBuilding, in.BuildingID)
		}
		return nil, fmt.Errorf("insert floor: %w", err)
	}
	return r.GetFloor(ctx, in.ID)
}

func (r *facilityRepo) DeleteFloor(ctx context.Context, id string) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		b := r.builder()
		steps := []entsql.Querier{
			b.Delete(tableConnections).Where(entsql.Or(entsql.EQ("floor1_id", id), entsql.EQ("floor2_id", id))),
			b.Delete(tableRooms).Where(entsql.EQ("floor_id", id)),
		}
		for _, q := range steps {
			query, args := q.Query()
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("delete floor %s: %w", id, err)
			}
		}
		query, args := b.Delete(tableFloors).Where(entsql.EQ("id", id)).Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete floor %s: %w", id, err)
		}
		return mustAffect(res, biz.KindFloor, id)
	})
}

func (r *facilityRepo) ListRooms(ctx context.Context, floorID string) ([]*biz.Room, error) {
	b := r.builder()
	t := b.Table(tableRooms)
	query, args := b.Select(t.Columns(roomColumns...)...).From(t).
		Where(entsql.EQ(t.C("floor_id"), floorID)).
		OrderBy(t.C("name"), t.C("id")).Query()
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()
	out := make([]*biz.Room, 0)
	for rows.Next() {
		it, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *facilityRepo) GetRoom(ctx context.Context, id string) (*biz.Room, error) {
	it, err := scanRoom(r.queryOne(ctx, tableRooms, roomColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, biz.NotFound(biz.KindRoom, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return it, nil
}

func (r *facilityRepo) CreateRoom(ctx context.Context, in *biz.Room) (*biz.Room, error) {
	ins := r.builder().Insert(tableRooms).Columns(roomColumns...).
		Values(in.ID, in.FloorID, in.Name, nullString(in.Description), nullString(in.ImageURL),
			nullInt(in.PositionX), nullInt(in.PositionY), millis(in.CreatedAt), millis(in.UpdatedAt))
	if _, err := r.exec(ctx, ins); err != nil {
		if sqlgraph.IsForeignKeyConstraintError(err) {
			return nil, biz.NotFound(biz.KindFloor, in.FloorID)
		}
		return nil, r.constraint(err, "insert room")
	}
	return r.GetRoom(ctx, in.ID)
}

func (r *facilityRepo) UpdateRoom(ctx context.Context, id string, u biz.RoomUpdate) (*biz.Room, error) {
	if u.Empty() {
		return nil, biz.ErrNoUpdates
	}
	upd := r.builder().Update(tableRooms)
	if u.Name != nil {
		upd.Set("name", *u.Name)
	}
	if u.Description != nil {
		upd.Set("description", nullString(*u.Description))
	}
	if u.ImageURL != nil {
		upd.Set("image_url", nullString(*u.ImageURL))
	}
	upd.Set("updated_at", millis(u.UpdatedAt)).Where(entsql.EQ("id", id))
	if _, err := r.exec(ctx, upd); err != nil {
		return nil, fmt.Errorf("update room %s: %w", id, err)
	}
	// mysql 在值未变化时 RowsAffected 为 0，这里以回读判断是否存在
	return r.GetRoom(ctx, id)
}

func (r *facilityRepo) DeleteRoom(ctx context.Context, id string) error {
	res, err := r.exec(ctx, r.builder().Delete(tableRooms).Where(entsql.EQ("id", id)))
	if err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return mustAffect(res, biz.KindRoom, id)
}

func (r *facilityRepo) ListActiveConnections(ctx context.Context) ([]*biz.Connection, error) {
	b := r.builder()
	c := b.Table(tableConnections).As("c")
	b1 := b.Table(tableBuildings).As("b1")
	b2 := b.Table(tableBuildings).As("b2")
	f1 := b.Table(tableFloors).As("f1")
	f2 := b.Table(tableFloors).As("f2")
	cols := append(c.Columns(connectionColumns...),
		entsql.As(b1.C("name"), "building1_name"),
		entsql.As(b2.C("name"), "building2_name"),
		entsql.As(f1.C("name"), "floor1_name"),
		entsql.As(f2.C("name"), "floor2_name"),
	)
	query, args := b.Select(cols...).From(c).
		Join(b1).On(c.C("building1_id"), b1.C("id")).
		Join(b2).On(c.C("building2_id"), b2.C("id")).
		Join(f1).On(c.C("floor1_id"), f1.C("id")).
		Join(f2).On(c.C("floor2_id"), f2.C("id")).
		Where(entsql.EQ(c.C("is_active"), true)).
		OrderBy(c.C("name"), c.C("id")).Query()
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()
	out := make([]*biz.Connection, 0)
	for rows.Next() {
		it, err := scanConnection(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *facilityRepo) getConnection(ctx context.Context, id string) (*biz.Connection, error) {
	it, err := scanConnection(r.queryOne(ctx, tableConnections, connectionColumns, id), false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, biz.NotFound(biz.KindConnection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return it, nil
}

func (r *facilityRepo) CreateConnection(ctx context.Context, in *biz.Connection) (*biz.Connection, error) {
	ins := r.builder().Insert(tableConnections).Columns(connectionColumns...).
		Values(in.ID, in.Building1ID, in.Building2ID, in.Floor1ID, in.Floor2ID, in.Name, in.IsActive,
			millis(in.CreatedAt), millis(in.UpdatedAt))
	if _, err := r.exec(ctx, ins); err != nil {
		return nil, r.constraint(err, "insert connection")
	}
	return r.getConnection(ctx, in.ID)
}

func (r *facilityRepo) SetConnectionActive(ctx context.Context, id string, active bool) (*biz.Connection, error) {
	upd := r.builder().Update(tableConnections).
		Set("is_active", active).
		Set("updated_at", millis(biz.Now())).
		Where(entsql.EQ("id", id))
	if _, err := r.exec(ctx, upd); err != nil {
		return nil, fmt.Errorf("update connection %s: %w", id, err)
	}
	return r.getConnection(ctx, id)
}

// constraint 唯一约束冲突映射为 CONFLICT，外键缺失映射为 NOT_FOUND
func (r *facilityRepo) constraint(err error, op string) error {
	switch {
	case sqlgraph.IsUniqueConstraintError(err):
		return biz.ErrConflict.WithCause(err)
	case sqlgraph.IsForeignKeyConstraintError(err):
		return biz.ErrNotFound.WithCause(err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (r *facilityRepo) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			r.log.WithContext(ctx).Warnf("rollback: %v", rerr)
		}
		return err
	}
	return tx.Commit()
}
