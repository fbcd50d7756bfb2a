// Package memstore is an in-memory repository.Store backing the service,
// handler, bot and scheduler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"weekend-booking-bot/internal/model"
	"weekend-booking-bot/internal/repository"
)

type state struct {
	nextID   int64
	games    map[int64]*model.Game
	sessions map[int64]*model.Session
	bookings map[int64]*model.Booking
	history  []*model.HistoryEntry
}

func (s *state) clone() *state {
	c := &state{
		nextID:   s.nextID,
		games:    make(map[int64]*model.Game, len(s.games)),
		sessions: make(map[int64]*model.Session, len(s.sessions)),
		bookings: make(map[int64]*model.Booking, len(s.bookings)),
		history:  make([]*model.HistoryEntry, len(s.history)),
	}
	for id, g := range s.games {
		c.games[id] = copyGame(g)
	}
	for id, sess := range s.sessions {
		c.sessions[id] = copySession(sess)
	}
	for id, b := range s.bookings {
		c.bookings[id] = copyBooking(b)
	}
	for i, e := range s.history {
		cp := *e
		c.history[i] = &cp
	}
	return c
}

// Store keeps all records in memory. Transactions are serialized and
// rolled back by restoring a snapshot.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *state
	now  func() time.Time
}

var _ repository.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		data: &state{
			games:    make(map[int64]*model.Game),
			sessions: make(map[int64]*model.Session),
			bookings: make(map[int64]*model.Booking),
		},
		now: time.Now,
	}
}

// txStore is the view handed to WithTx callbacks. Nested WithTx calls run
// inside the enclosing transaction.
type txStore struct {
	*Store
}

func (t txStore) WithTx(_ context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

// WithTx runs fn with exclusive transactional access. If fn returns an
// error every change made through tx is discarded.
func (s *Store) WithTx(_ context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(txStore{s}); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) id() int64 {
	s.data.nextID++
	return s.data.nextID
}

func copyGame(g *model.Game) *model.Game {
	cp := *g
	return &cp
}

func copySession(sess *model.Session) *model.Session {
	cp := *sess
	if sess.MessageID != nil {
		id := *sess.MessageID
		cp.MessageID = &id
	}
	return &cp
}

func copyBooking(b *model.Booking) *model.Booking {
	cp := *b
	return &cp
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ---------------------------------------------------------------------------
// Games
// ---------------------------------------------------------------------------

func (s *Store) GetGameByName(_ context.Context, name string) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.data.games {
		if strings.EqualFold(g.Name, name) {
			return copyGame(g), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) GetGame(_ context.Context, id int64) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.data.games[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyGame(g), nil
}

func (s *Store) ListGames(_ context.Context) ([]*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	games := make([]*model.Game, 0, len(s.data.games))
	for _, g := range s.data.games {
		games = append(games, copyGame(g))
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games, nil
}

func (s *Store) UpsertGame(_ context.Context, name string, maxSlots int) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.data.games {
		if g.Name == name {
			g.MaxSlots = maxSlots
			return copyGame(g), nil
		}
	}
	g := &model.Game{ID: s.id(), Name: name, MaxSlots: maxSlots}
	s.data.games[g.ID] = g
	return copyGame(g), nil
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func (s *Store) GetSession(_ context.Context, id int64) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(sess), nil
}

func (s *Store) findLocked(key model.SessionKey) *model.Session {
	for _, sess := range s.data.sessions {
		if sess.GameID == key.GameID && sess.ChatID == key.ChatID &&
			sess.Day == key.Day && sameDate(sess.WeekStart, key.WeekStart) {
			return sess
		}
	}
	return nil
}

func (s *Store) FindSession(_ context.Context, key model.SessionKey) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.findLocked(key); sess != nil {
		return copySession(sess), nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) InsertSession(_ context.Context, key model.SessionKey) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(key) != nil {
		return nil, repository.ErrDuplicate
	}
	sess := &model.Session{
		ID:        s.id(),
		GameID:    key.GameID,
		ChatID:    key.ChatID,
		Day:       key.Day,
		WeekStart: key.WeekStart,
		Status:    model.SessionOpen,
		CreatedAt: s.now(),
	}
	s.data.sessions[sess.ID] = sess
	return copySession(sess), nil
}

// LockSession returns the session. WithTx already serializes writers.
func (s *Store) LockSession(ctx context.Context, id int64) (*model.Session, error) {
	return s.GetSession(ctx, id)
}

func (s *Store) listSessions(match func(*model.Session) bool) []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Session
	for _, sess := range s.data.sessions {
		if match(sess) {
			out = append(out, copySession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListOpenSessions(_ context.Context, chatID int64) ([]*model.Session, error) {
	return s.listSessions(func(sess *model.Session) bool {
		return sess.ChatID == chatID && sess.IsOpen()
	}), nil
}

func (s *Store) ListAllOpenSessions(_ context.Context) ([]*model.Session, error) {
	return s.listSessions(func(sess *model.Session) bool { return sess.IsOpen() }), nil
}

func (s *Store) SetSessionStatus(_ context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	sess.Status = status
	return nil
}

func (s *Store) SetMessageID(_ context.Context, id int64, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	sess.MessageID = &messageID
	return nil
}

// ---------------------------------------------------------------------------
// Bookings
// ---------------------------------------------------------------------------

func (s *Store) ListActiveBookings(_ context.Context, sessionID int64) ([]*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.data.bookings {
		if b.SessionID == sessionID && b.IsActive() {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) GetActiveBooking(_ context.Context, sessionID, userID int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.data.bookings {
		if b.SessionID == sessionID && b.UserID == userID && b.IsActive() {
			return copyBooking(b), nil
		}
	}
	return nil, repository.ErrNotFound
}

// conflictLocked reports whether an active booking other than b already
// holds b's user or position.
func (s *Store) conflictLocked(b *model.Booking) bool {
	if !b.IsActive() {
		return false
	}
	for _, other := range s.data.bookings {
		if other.ID == b.ID || other.SessionID != b.SessionID || !other.IsActive() {
			continue
		}
		if other.UserID == b.UserID || other.Position == b.Position {
			return true
		}
	}
	return false
}

func (s *Store) InsertBooking(_ context.Context, b *model.Booking) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.sessions[b.SessionID]; !ok {
		return nil, repository.ErrNotFound
	}
	created := copyBooking(b)
	created.ID = 0
	if s.conflictLocked(created) {
		return nil, repository.ErrDuplicate
	}
	created.ID = s.id()
	created.CreatedAt = s.now()
	s.data.bookings[created.ID] = created
	return copyBooking(created), nil
}

func (s *Store) UpdateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.data.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := copyBooking(existing)
	next.Position = b.Position
	next.Status = b.Status
	next.TimeFrom = b.TimeFrom
	next.TimeTo = b.TimeTo
	if s.conflictLocked(next) {
		return repository.ErrDuplicate
	}
	s.data.bookings[b.ID] = next
	return nil
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func (s *Store) AddHistory(_ context.Context, e *model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	e.CreatedAt = s.now()
	cp := *e
	s.data.history = append(s.data.history, &cp)
	return nil
}

func (s *Store) ListHistory(_ context.Context) ([]*model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.HistoryEntry, 0, len(s.data.history))
	for i := len(s.data.history) - 1; i >= 0; i-- {
		cp := *s.data.history[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) ListUserHistory(_ context.Context, userID int64) ([]*model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.HistoryEntry
	for _, e := range s.data.history {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
