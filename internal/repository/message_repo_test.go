package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"foodmed/internal/domain"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type statement struct {
	sql  string
	vars []interface{}
}

type recorder struct {
	stmts []statement
}

func (r *recorder) capture(db *gorm.DB) {
	r.stmts = append(r.stmts, statement{sql: db.Statement.SQL.String(), vars: db.Statement.Vars})
}

func (r *recorder) last(t *testing.T) statement {
	t.Helper()
	if len(r.stmts) == 0 {
		t.Fatal("no statement was built")
	}
	return r.stmts[len(r.stmts)-1]
}

// newDryRunDB builds statements with the MySQL dialect without connecting.
func newDryRunDB(t *testing.T) (*gorm.DB, *recorder) {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "chat:chat@tcp(127.0.0.1:3306)/foodmed?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := &recorder{}
	db.Callback().Create().After("gorm:create").Register("test:capture_create", rec.capture)
	db.Callback().Query().After("gorm:query").Register("test:capture_query", rec.capture)
	db.Callback().Update().After("gorm:update").Register("test:capture_update", rec.capture)
	return db, rec
}

func hasVars(vars []interface{}, want ...interface{}) bool {
	for _, w := range want {
		found := false
		for _, v := range vars {
			if v == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestMessageRepository_Save(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewMessageRepository(db, NewClock())

	m, err := repo.Save(context.Background(), "alice", "bob", "hi")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if m.ID == "" || m.CreatedAt.IsZero() || !m.UpdatedAt.Equal(m.CreatedAt) {
		t.Errorf("message = %+v", m)
	}
	st := rec.last(t)
	if !strings.HasPrefix(st.sql, "INSERT INTO `chat_messages`") {
		t.Errorf("sql = %q", st.sql)
	}
	if !hasVars(st.vars, m.ID, "alice", "bob", "hi") {
		t.Errorf("vars = %v", st.vars)
	}

	next, err := repo.Save(context.Background(), "bob", "alice", "hello")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !next.CreatedAt.After(m.CreatedAt) {
		t.Errorf("second timestamp %v not after %v", next.CreatedAt, m.CreatedAt)
	}
}

func TestMessageRepository_SaveFailureIsPersistenceError(t *testing.T) {
	db, _ := newDryRunDB(t)
	db.Callback().Create().Before("gorm:create").Register("test:fail", func(db *gorm.DB) {
		db.AddError(errors.New("connection refused"))
	})
	repo := NewMessageRepository(db, NewClock())

	m, err := repo.Save(context.Background(), "alice", "bob", "hi")
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if m != nil {
		t.Errorf("message = %+v, want nil", m)
	}
}

func TestMessageRepository_QueryPair(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewMessageRepository(db, NewClock())

	if _, err := repo.Query(context.Background(), HistoryQuery{UserA: "alice", UserB: "bob", Limit: 10, Offset: 5}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	st := rec.last(t)
	for _, frag := range []string{
		"FROM `chat_messages`",
		"(sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)",
		"ORDER BY created_at ASC,id ASC",
		"LIMIT",
		"OFFSET",
	} {
		if !strings.Contains(st.sql, frag) {
			t.Errorf("sql %q does not contain %q", st.sql, frag)
		}
	}
	if len(st.vars) < 4 {
		t.Fatalf("vars = %v", st.vars)
	}
	want := []interface{}{"alice", "bob", "bob", "alice"}
	for i, w := range want {
		if st.vars[i] != w {
			t.Errorf("vars[%d] = %v, want %v", i, st.vars[i], w)
		}
	}
}

func TestMessageRepository_QueryAll(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewMessageRepository(db, NewClock())

	if _, err := repo.Query(context.Background(), HistoryQuery{}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	st := rec.last(t)
	if strings.Contains(st.sql, "WHERE") || strings.Contains(st.sql, "LIMIT") {
		t.Errorf("sql = %q, want an unfiltered listing", st.sql)
	}
	if !strings.Contains(st.sql, "ORDER BY created_at ASC,id ASC") {
		t.Errorf("sql = %q, want ascending order", st.sql)
	}
}

func TestMessageRepository_QueryHalfPair(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewMessageRepository(db, NewClock())

	_, err := repo.Query(context.Background(), HistoryQuery{UserA: "alice"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if len(rec.stmts) != 0 {
		t.Errorf("built %d statements for an invalid query", len(rec.stmts))
	}
}

func TestPresenceRepository_RecordUpserts(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewPresenceRepository(db)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Record(context.Background(), "alice", true, at); err != nil {
		t.Fatalf("Record: %v", err)
	}
	st := rec.last(t)
	if !strings.HasPrefix(st.sql, "INSERT INTO `user_presence`") {
		t.Errorf("sql = %q", st.sql)
	}
	for _, col := range []string{"`status`", "`is_online`", "`last_seen_at`", "`updated_at`"} {
		i := strings.Index(st.sql, "ON DUPLICATE KEY UPDATE")
		if i < 0 || !strings.Contains(st.sql[i:], col) {
			t.Errorf("sql %q does not update %s on conflict", st.sql, col)
		}
	}
	if !hasVars(st.vars, "alice", domain.PresenceOnline, true) {
		t.Errorf("vars = %v", st.vars)
	}
}

func TestPresenceRepository_ResetOnline(t *testing.T) {
	db, rec := newDryRunDB(t)
	repo := NewPresenceRepository(db)

	if err := repo.ResetOnline(context.Background()); err != nil {
		t.Fatalf("ResetOnline: %v", err)
	}
	st := rec.last(t)
	if !strings.HasPrefix(st.sql, "UPDATE `user_presence` SET") || !strings.Contains(st.sql, "WHERE is_online = ?") {
		t.Errorf("sql = %q", st.sql)
	}
	if !hasVars(st.vars, domain.PresenceOffline) {
		t.Errorf("vars = %v", st.vars)
	}
}

func TestPresenceRepository_GetByUserID(t *testing.T) {
	tests := []struct {
		name    string
		fail    error
		wantNil bool
		wantErr error
	}{
		{"found", nil, false, nil},
		{"never seen", gorm.ErrRecordNotFound, true, nil},
		{"store down", errors.New("connection refused"), true, domain.ErrPersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, rec := newDryRunDB(t)
			if tt.fail != nil {
				db.Callback().Query().After("gorm:query").Register("test:fail", func(db *gorm.DB) {
					db.AddError(tt.fail)
				})
			}
			repo := NewPresenceRepository(db)

			p, err := repo.GetByUserID(context.Background(), "alice")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (p == nil) != tt.wantNil {
				t.Errorf("presence = %+v, wantNil %v", p, tt.wantNil)
			}
			st := rec.last(t)
			if !strings.Contains(st.sql, "FROM `user_presence` WHERE user_id = ?") || !hasVars(st.vars, "alice") {
				t.Errorf("statement = %+v", st)
			}
		})
	}
}
