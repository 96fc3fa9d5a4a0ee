package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"turfhub/pkg/domain"
)

const migrateLockID int64 = 48151623

// GormStore implements Store on Postgres through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the database and migrates the schema under an advisory lock
// so several API replicas can start at once.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserRow{}, &HubRow{}, &BookingRow{}, &RoomRow{}, &MessageRow{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveUser inserts or updates a user.
func (s *GormStore) SaveUser(ctx context.Context, u domain.User) error {
	row := userToRow(u)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "role", "nickname", "email_verified", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserRow{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var row UserRow
	if ok, err := first(s.db.WithContext(ctx).Where("email = ?", email), &row); !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromRow(row), true, nil
}

func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var row UserRow
	if ok, err := first(s.db.WithContext(ctx).Where("id = ?", id), &row); !ok || err != nil {
		return domain.User{}, false, err
	}
	return userFromRow(row), true, nil
}

// InsertHub creates a new hub row.
func (s *GormStore) InsertHub(ctx context.Context, h domain.Hub) error {
	row := HubToRow(h)
	return s.db.WithContext(ctx).Create(&row).Error
}

// UpdateHub replaces every column of an existing hub. Last write wins.
func (s *GormStore) UpdateHub(ctx context.Context, h domain.Hub) error {
	row := HubToRow(h)
	res := s.db.WithContext(ctx).Model(&HubRow{}).Where("id = ?", h.ID).Select("*").Omit("id", "created_at").Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) GetHub(ctx context.Context, id string) (domain.Hub, bool, error) {
	var row HubRow
	if ok, err := first(s.db.WithContext(ctx).Where("id = ?", id), &row); !ok || err != nil {
		return domain.Hub{}, false, err
	}
	return HubFromRow(row), true, nil
}

func (s *GormStore) ListHubs(ctx context.Context) ([]domain.Hub, error) {
	return s.listHubs(ctx)
}

func (s *GormStore) ListHubsByOwner(ctx context.Context, ownerID string) ([]domain.Hub, error) {
	return s.listHubs(ctx, "owner_id = ?", ownerID)
}

func (s *GormStore) listHubs(ctx context.Context, conds ...any) ([]domain.Hub, error) {
	var rows []HubRow
	q := s.db.WithContext(ctx).Order("is_bestseller desc, created_at desc")
	if len(conds) > 0 {
		q = q.Where(conds[0], conds[1:]...)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	hubs := make([]domain.Hub, 0, len(rows))
	for _, r := range rows {
		hubs = append(hubs, HubFromRow(r))
	}
	return hubs, nil
}

func (s *GormStore) CreateBooking(ctx context.Context, b domain.Booking) error {
	row := BookingToRow(b)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) GetBooking(ctx context.Context, id string) (domain.Booking, bool, error) {
	var row BookingRow
	if ok, err := first(s.db.WithContext(ctx).Where("id = ?", id), &row); !ok || err != nil {
		return domain.Booking{}, false, err
	}
	return BookingFromRow(row), true, nil
}

func (s *GormStore) SetBookingStatus(ctx context.Context, id string, from, to domain.BookingStatus) error {
	res := s.db.WithContext(ctx).Model(&BookingRow{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := s.db.WithContext(ctx).Model(&BookingRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStatusChanged
	}
	return nil
}

func (s *GormStore) ListBookingsByUserName(ctx context.Context, userName string) ([]domain.Booking, error) {
	return s.listBookings(ctx, "user_name = ?", userName)
}

func (s *GormStore) ListBookingsByHubs(ctx context.Context, hubIDs []string) ([]domain.Booking, error) {
	if len(hubIDs) == 0 {
		return []domain.Booking{}, nil
	}
	return s.listBookings(ctx, "hub_id IN ?", hubIDs)
}

func (s *GormStore) listBookings(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	var rows []BookingRow
	if err := s.db.WithContext(ctx).Where(query, args...).Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Booking, 0, len(rows))
	for _, r := range rows {
		out = append(out, BookingFromRow(r))
	}
	return out, nil
}

func (s *GormStore) CountBookings(ctx context.Context, hubID string, status domain.BookingStatus) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&BookingRow{}).
		Where("hub_id = ? AND status = ?", hubID, string(status)).
		Count(&count).Error
	return int(count), err
}

func (s *GormStore) CreateRoom(ctx context.Context, r domain.ChatRoom) error {
	row := RoomToRow(r)
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateJoinCode
	}
	return err
}

func (s *GormStore) GetRoom(ctx context.Context, id string) (domain.ChatRoom, bool, error) {
	var row RoomRow
	if ok, err := first(s.db.WithContext(ctx).Where("id = ?", id), &row); !ok || err != nil {
		return domain.ChatRoom{}, false, err
	}
	return RoomFromRow(row), true, nil
}

func (s *GormStore) FindRoomByJoinCode(ctx context.Context, code string) (domain.ChatRoom, bool, error) {
	var row RoomRow
	if ok, err := first(s.db.WithContext(ctx).Where("join_code = ?", code), &row); !ok || err != nil {
		return domain.ChatRoom{}, false, err
	}
	return RoomFromRow(row), true, nil
}

// ListRoomsForMember returns the global room plus every squad the user belongs to.
func (s *GormStore) ListRoomsForMember(ctx context.Context, userID string) ([]domain.ChatRoom, error) {
	member, err := json.Marshal([]string{userID})
	if err != nil {
		return nil, err
	}
	var rows []RoomRow
	if err := s.db.WithContext(ctx).
		Where("is_global = ? OR members @> ?::jsonb", true, string(member)).
		Order("is_global desc, created_at asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	rooms := make([]domain.ChatRoom, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, RoomFromRow(r))
	}
	return rooms, nil
}

// AddRoomMember adds userID to the room's member list if missing.
func (s *GormStore) AddRoomMember(ctx context.Context, roomID, userID string) (domain.ChatRoom, error) {
	var out domain.ChatRoom
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row RoomRow
		ok, err := first(tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", roomID), &row)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		room := RoomFromRow(row)
		if !room.IsGlobal && !room.HasMember(userID) {
			room.Members = append(room.Members, userID)
			row.Members = room.Members
			if err := tx.Model(&RoomRow{}).Where("id = ?", roomID).Update("members", row.Members).Error; err != nil {
				return err
			}
		}
		out = room
		return nil
	})
	return out, err
}

func (s *GormStore) AppendMessage(ctx context.Context, m domain.ChatMessage) error {
	row, err := MessageToRow(m)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) GetMessage(ctx context.Context, id string) (domain.ChatMessage, bool, error) {
	var row MessageRow
	if ok, err := first(s.db.WithContext(ctx).Where("id = ?", id), &row); !ok || err != nil {
		return domain.ChatMessage{}, false, err
	}
	msg, err := MessageFromRow(row)
	if err != nil {
		return domain.ChatMessage{}, false, err
	}
	return msg, true, nil
}

// ListMessages returns the newest limit messages in chronological order.
func (s *GormStore) ListMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	var rows []MessageRow
	q := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessage, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		msg, err := MessageFromRow(rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// UpdatePoll applies fn to a message's poll while holding a row lock.
func (s *GormStore) UpdatePoll(ctx context.Context, messageID string, fn func(domain.Poll) (domain.Poll, error)) (domain.ChatMessage, error) {
	var out domain.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row MessageRow
		ok, err := first(tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", messageID), &row)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		msg, err := MessageFromRow(row)
		if err != nil {
			return err
		}
		if msg.Poll == nil {
			return ErrInvalidPoll
		}
		updated, err := fn(*msg.Poll)
		if err != nil {
			return err
		}
		encoded, err := EncodePoll(&updated)
		if err != nil {
			return err
		}
		if err := tx.Model(&MessageRow{}).Where("id = ?", messageID).Update("poll", encoded).Error; err != nil {
			return err
		}
		msg.Poll = &updated
		out = msg
		return nil
	})
	return out, err
}

// first loads one row, mapping gorm.ErrRecordNotFound to ok=false.
func first(q *gorm.DB, dest any) (bool, error) {
	if err := q.First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
