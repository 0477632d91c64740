// Package inmemdb keeps the application tables in memory. It backs tests and database-less runs.
package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/agoras/agoras/core"
	"github.com/agoras/agoras/core/booking"
	"github.com/agoras/agoras/core/profile"
	"github.com/agoras/agoras/core/student"
)

type DB struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	profiles map[string]profile.Profile
	students map[string]student.Student
	bookings map[string]booking.Booking
}

func Open() *DB {
	return &DB{
		profiles: make(map[string]profile.Profile),
		students: make(map[string]student.Student),
		bookings: make(map[string]booking.Booking),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.profiles = make(map[string]profile.Profile)
	db.students = make(map[string]student.Student)
	db.bookings = make(map[string]booking.Booking)
}

// InTx serializes transactions and restores the tables when fn fails.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := db.snapshot()
	if err := fn(nil); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	profiles map[string]profile.Profile
	students map[string]student.Student
	bookings map[string]booking.Booking
}

func (db *DB) snapshot() snapshot {
	db.mu.RLock()
	defer db.mu.RUnlock()

	snap := snapshot{
		profiles: make(map[string]profile.Profile, len(db.profiles)),
		students: make(map[string]student.Student, len(db.students)),
		bookings: make(map[string]booking.Booking, len(db.bookings)),
	}
	for k, v := range db.profiles {
		snap.profiles[k] = v
	}
	for k, v := range db.students {
		snap.students[k] = v
	}
	for k, v := range db.bookings {
		snap.bookings[k] = v
	}
	return snap
}

func (db *DB) restore(snap snapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.profiles, db.students, db.bookings = snap.profiles, snap.students, snap.bookings
}

// errStillReferenced is what a foreign key without ON DELETE CASCADE reports.
// Services remove dependent rows themselves, so the tables never rely on a cascade.
var errStillReferenced = errors.New("record is still referenced")

// cmpFunc compares the records i and j on field, returning <0, 0 or >0. Unknown fields compare equal.
type cmpFunc func(i, j int, field string) int

// sortRecords orders slice like ORDER BY would, with the record IDs as the last tie-breaker.
func sortRecords(slice interface{}, orderings []core.DBOrdering, fallback core.DBOrdering, cmp cmpFunc) {
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{fallback}
	}
	ords := make([]core.DBOrdering, 0, len(orderings)+1)
	ords = append(ords, orderings...)
	ords = append(ords, core.DBOrdering{Field: "id", Ascending: true})

	sort.SliceStable(slice, func(i, j int) bool {
		for _, ord := range ords {
			c := cmp(i, j, ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func cmpStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func cmpTimes(a, b time.Time) int {
	return a.Compare(b)
}

func cmpInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
